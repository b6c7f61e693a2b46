package events

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotObject is returned when a frame decodes to something other than a JSON object.
	ErrNotObject = errors.New("frame is not a JSON object")

	// ErrMissingPostType is returned for records without a post_type.
	ErrMissingPostType = errors.New("missing post_type")

	// ErrUnknownCategory is returned for a post_type outside the known five.
	ErrUnknownCategory = errors.New("unknown post_type")

	// ErrMissingType is returned when the category's companion type field is absent.
	ErrMissingType = errors.New("missing category type field")
)

// ClassifyError describes why a record could not be mapped to topics.
type ClassifyError struct {
	PostType string
	Field    string
	Err      error
}

func (e *ClassifyError) Error() string {
	switch {
	case e.Field != "" && e.PostType != "":
		return fmt.Sprintf("classify %s event: %s: %v", e.PostType, e.Field, e.Err)
	case e.PostType != "":
		return fmt.Sprintf("classify %s event: %v", e.PostType, e.Err)
	default:
		return fmt.Sprintf("classify event: %v", e.Err)
	}
}

func (e *ClassifyError) Unwrap() error { return e.Err }

// companionFields maps a category to the field naming its type. Fields are
// tried in order. message_sent records from go-cqhttp carry message_type, so
// it is accepted after the canonical name.
var companionFields = map[PostType][]string{
	PostMessage:     {"message_type"},
	PostMessageSent: {"message_sent_type", "message_type"},
	PostRequest:     {"request_type"},
	PostNotice:      {"notice_type"},
	PostMetaEvent:   {"meta_event_type"},
}

// CompanionField returns the canonical type field for a category.
func CompanionField(pt PostType) (string, bool) {
	fields, ok := companionFields[pt]
	if !ok {
		return "", false
	}
	return fields[0], true
}

// Classify returns the topics a record is published under, most specific
// first and ending with the bare post_type.
//
// Only the first underscore of the category type becomes a separator:
// "group_recall" yields "group.recall", while "group_card_x" yields
// "group.card_x". sub_type is appended verbatim when present.
func Classify(r Record) ([]Topic, error) {
	category := r.String(FieldPostType)
	if category == "" {
		return nil, &ClassifyError{Field: FieldPostType, Err: ErrMissingPostType}
	}

	fields, ok := companionFields[PostType(category)]
	if !ok {
		return nil, &ClassifyError{PostType: category, Err: ErrUnknownCategory}
	}

	var categoryType string
	for _, f := range fields {
		if v := r.String(f); v != "" {
			categoryType = v
			break
		}
	}
	if categoryType == "" {
		return nil, &ClassifyError{PostType: category, Field: fields[0], Err: ErrMissingType}
	}

	segments := make([]string, 0, 4)
	segments = append(segments, category)
	segments = append(segments, strings.SplitN(categoryType, "_", 2)...)
	if sub := r.String(FieldSubType); sub != "" {
		segments = append(segments, sub)
	}

	topics := make([]Topic, 0, len(segments))
	for n := len(segments); n > 0; n-- {
		topics = append(topics, Join(segments[:n]...))
	}
	return topics, nil
}
