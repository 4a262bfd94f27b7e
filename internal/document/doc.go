// Package document converts course pages between the nested block tree the
// editor works with and the normalized form the page API stores.
//
// In the tree, an exercise block holds slide blocks which hold task blocks.
// Normalizing lifts those into flat exercise, slide and task records joined
// by id and leaves a childless exercise marker in the content. Denormalizing
// rebuilds the tree from the records.
package document
