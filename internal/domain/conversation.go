package domain

import "strings"

// Topic identifies one kind of multi-step conversation.
type Topic string

const (
	TopicExpense  Topic = "expense"
	TopicPreOrder Topic = "po"
	TopicWishlist Topic = "wishlist"
)

// SkipToken marks an optional field the user chose to leave out.
const SkipToken = "skip"

// IsSkip reports whether an optional value means "omit this field".
func IsSkip(value string) bool {
	return strings.EqualFold(strings.TrimSpace(value), SkipToken)
}

// Field is one named value collected during a conversation.
type Field struct {
	Name  string
	Value string
}

// Record is an insertion-ordered set of fields.
type Record []Field

// Get returns the value stored under name.
func (r Record) Get(name string) (string, bool) {
	for _, f := range r {
		if f.Name == name {
			return f.Value, true
		}
	}
	return "", false
}

// Value returns the value stored under name or "" when absent.
func (r Record) Value(name string) string {
	v, _ := r.Get(name)
	return v
}

// Set replaces the value under name in place, or appends a new field.
func (r Record) Set(name, value string) Record {
	out := r.Clone()
	for i := range out {
		if out[i].Name == name {
			out[i].Value = value
			return out
		}
	}
	return append(out, Field{Name: name, Value: value})
}

// Clone returns a copy that shares no backing array with r.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	copy(out, r)
	return out
}

// ConversationState is the live progress of one user through one topic.
// Step is the index of the step awaiting input; it is tracked separately from
// Record because seeded values do not count as answered steps.
type ConversationState struct {
	UserID string
	Topic  Topic
	Step   int
	Record Record
}
