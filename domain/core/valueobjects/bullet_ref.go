package valueobjects

import (
	"fmt"

	pkgerrors "github.com/dipan99/mindmapper/pkg/errors"
)

// BulletRef addresses one bullet of an Answer node. It is never stored on
// its own; it is resolved against the graph every time it is used.
type BulletRef struct {
	AnswerID NodeID `json:"answerId"`
	Index    int    `json:"index"`
}

// NewBulletRef parses and checks the static parts of a reference.
// Bounds against the live node are checked at dispatch time.
func NewBulletRef(answerID string, index int) (BulletRef, error) {
	id, err := ParseNodeID(answerID)
	if err != nil {
		return BulletRef{}, pkgerrors.NewInvalidBulletReferenceError(answerID, index, "malformed answer id").WithCause(err)
	}
	if id.Kind() != KindAnswer {
		return BulletRef{}, pkgerrors.NewInvalidBulletReferenceError(answerID, index, "not an answer node")
	}
	if index < 0 {
		return BulletRef{}, pkgerrors.NewInvalidBulletReferenceError(answerID, index, "negative index")
	}
	return BulletRef{AnswerID: id, Index: index}, nil
}

func (r BulletRef) String() string {
	return fmt.Sprintf("%s#%d", r.AnswerID, r.Index)
}
