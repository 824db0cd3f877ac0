package services

import (
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/dipan99/mindmapper/domain/config"
	"github.com/dipan99/mindmapper/domain/core/entities"
	"github.com/dipan99/mindmapper/domain/core/valueobjects"
	pkgerrors "github.com/dipan99/mindmapper/pkg/errors"
)

// RandomSource yields floats in [0, 1). *rand.Rand satisfies it.
type RandomSource interface {
	Float64() float64
}

// NodeFactory builds well-formed nodes with positions derived from their
// parent. It allocates ids but never touches the graph store.
type NodeFactory struct {
	ids *IDAllocator
	cfg *config.DomainConfig

	// guards rnd; *rand.Rand is not safe for concurrent use
	mu  sync.Mutex
	rnd RandomSource
}

// NewNodeFactory creates a node factory. A nil rnd uses a time-seeded source.
func NewNodeFactory(ids *IDAllocator, rnd RandomSource, cfg *config.DomainConfig) *NodeFactory {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &NodeFactory{ids: ids, cfg: cfg, rnd: rnd}
}

// CreateQueryNode creates a Query node. With a nil anchor the node is a
// root query placed at a random spot of the root area; otherwise it sits
// at the anchor position. Blank text is rejected before any id is used.
func (f *NodeFactory) CreateQueryNode(text string, anchor *valueobjects.Position) (*entities.Node, error) {
	if isBlank(text) {
		return nil, pkgerrors.NewEmptyInputError("query text")
	}

	var (
		pos valueobjects.Position
		err error
	)
	if anchor != nil {
		pos = *anchor
	} else {
		pos, err = f.rootPosition()
		if err != nil {
			return nil, err
		}
	}

	id, err := f.ids.NextID(valueobjects.KindQuery)
	if err != nil {
		return nil, err
	}
	return entities.NewQueryNode(id, text, pos)
}

// CreateFollowUpQuery creates a Query node derived from bullet ref of the
// answer at parent. Follow-ups fan out to the right by bullet index.
func (f *NodeFactory) CreateFollowUpQuery(text string, ref valueobjects.BulletRef, parent valueobjects.Position) (*entities.Node, error) {
	pos, err := parent.Translate(
		f.cfg.FollowUpOffsetX+f.cfg.FollowUpSpreadX*float64(ref.Index),
		f.cfg.FollowUpOffsetY,
	)
	if err != nil {
		return nil, err
	}

	node, err := f.CreateQueryNode(text, &pos)
	if err != nil {
		return nil, err
	}
	if err := node.AnchorTo(ref); err != nil {
		return nil, err
	}
	return node, nil
}

// CreateAnswerNode creates an Answer node below its query
func (f *NodeFactory) CreateAnswerNode(bullets []string, parent valueobjects.Position) (*entities.Node, error) {
	if len(bullets) == 0 {
		return nil, pkgerrors.NewValidationError("answer must have at least one bullet")
	}
	for _, b := range bullets {
		if isBlank(b) {
			return nil, pkgerrors.NewEmptyInputError("bullet")
		}
	}

	pos, err := f.answerPosition(parent)
	if err != nil {
		return nil, err
	}
	id, err := f.ids.NextID(valueobjects.KindAnswer)
	if err != nil {
		return nil, err
	}
	return entities.NewAnswerNode(id, bullets, pos)
}

// CreateDegradedAnswerNode creates the bullet-less Answer placed where the
// real answer would have gone
func (f *NodeFactory) CreateDegradedAnswerNode(reason string, parent valueobjects.Position) (*entities.Node, error) {
	pos, err := f.answerPosition(parent)
	if err != nil {
		return nil, err
	}
	id, err := f.ids.NextID(valueobjects.KindAnswer)
	if err != nil {
		return nil, err
	}
	return entities.NewDegradedAnswerNode(id, reason, pos)
}

// CreateSourcesNode creates a Sources node to the right of its answer
func (f *NodeFactory) CreateSourcesNode(items []valueobjects.SourceItem, parent valueobjects.Position) (*entities.Node, error) {
	return f.createSources(items, parent, 0)
}

// CreateSourcesForBullet creates a Sources node for bullet ref of the answer
// at parent; sources of later bullets stack downwards
func (f *NodeFactory) CreateSourcesForBullet(items []valueobjects.SourceItem, ref valueobjects.BulletRef, parent valueobjects.Position) (*entities.Node, error) {
	node, err := f.createSources(items, parent, ref.Index)
	if err != nil {
		return nil, err
	}
	if err := node.AnchorTo(ref); err != nil {
		return nil, err
	}
	return node, nil
}

func (f *NodeFactory) createSources(items []valueobjects.SourceItem, parent valueobjects.Position, index int) (*entities.Node, error) {
	for _, item := range items {
		if item.URL == "" {
			return nil, pkgerrors.NewEmptyInputError("source url")
		}
	}

	pos, err := parent.Translate(f.cfg.SourcesOffsetX, f.cfg.SourcesSpreadY*float64(index))
	if err != nil {
		return nil, err
	}
	id, err := f.ids.NextID(valueobjects.KindSources)
	if err != nil {
		return nil, err
	}
	return entities.NewSourcesNode(id, items, pos)
}

func (f *NodeFactory) answerPosition(parent valueobjects.Position) (valueobjects.Position, error) {
	return parent.Translate(f.cfg.AnswerOffsetX, f.cfg.AnswerOffsetY)
}

func (f *NodeFactory) rootPosition() (valueobjects.Position, error) {
	f.mu.Lock()
	rx, ry := f.rnd.Float64(), f.rnd.Float64()
	f.mu.Unlock()

	return valueobjects.NewPosition(
		f.cfg.RootMinX+rx*f.cfg.RootSpanX,
		f.cfg.RootMinY+ry*f.cfg.RootSpanY,
	)
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
