package document

import (
	"fmt"

	"github.com/go-viper/mapstructure/v2"
)

// The editor stores block attributes as an untyped map. These structs are the
// typed view of the three special block kinds; everything that touches the
// raw map goes through decodeAttrs or the toAttributes methods.

type exerciseAttrs struct {
	ID                 string  `mapstructure:"id"`
	Name               string  `mapstructure:"name"`
	ScoreMaximum       *int    `mapstructure:"score_maximum"`
	MaxTriesPerSlide   *int    `mapstructure:"max_tries_per_slide"`
	LimitNumberOfTries *bool   `mapstructure:"limit_number_of_tries"`
	NeedsPeerReview    *bool   `mapstructure:"needs_peer_review"`
	PeerReviewConfig   *string `mapstructure:"peer_review_config"`
}

type slideAttrs struct {
	ID string `mapstructure:"id"`
}

type taskAttrs struct {
	ID           string `mapstructure:"id"`
	ExerciseType string `mapstructure:"exercise_type"`
	PrivateSpec  string `mapstructure:"private_spec"`
}

func decodeAttrs(attrs map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(attrs); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAttributes, err)
	}
	return nil
}

func (a exerciseAttrs) toAttributes() map[string]any {
	m := map[string]any{
		"id":   a.ID,
		"name": a.Name,
	}
	if a.ScoreMaximum != nil {
		m["score_maximum"] = *a.ScoreMaximum
	}
	if a.MaxTriesPerSlide != nil {
		m["max_tries_per_slide"] = *a.MaxTriesPerSlide
	}
	if a.LimitNumberOfTries != nil {
		m["limit_number_of_tries"] = *a.LimitNumberOfTries
	}
	if a.NeedsPeerReview != nil {
		m["needs_peer_review"] = *a.NeedsPeerReview
	}
	if a.PeerReviewConfig != nil {
		m["peer_review_config"] = *a.PeerReviewConfig
	}
	return m
}

// idAttr reads the id attribute the way Normalize does, so a numeric id
// reads as its decimal string. It returns "" when the id is absent or cannot
// be read as a string.
func idAttr(attrs map[string]any) string {
	var a slideAttrs
	if err := decodeAttrs(map[string]any{"id": attrs["id"]}, &a); err != nil {
		return ""
	}
	return a.ID
}

// hasID reports whether attrs carry an id. A value that is set but not
// readable as a string still counts, so it is never overwritten.
func hasID(attrs map[string]any) bool {
	v, ok := attrs["id"]
	if !ok || v == nil {
		return false
	}
	var a slideAttrs
	if err := decodeAttrs(map[string]any{"id": v}, &a); err != nil {
		return true
	}
	return a.ID != ""
}
