package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dipan99/mindmapper/application/ports"
	"github.com/dipan99/mindmapper/domain/core/entities"
	"github.com/dipan99/mindmapper/domain/core/valueobjects"
	pkgerrors "github.com/dipan99/mindmapper/pkg/errors"
)

func TestParseAction(t *testing.T) {
	for _, name := range []string{"expand", "sources", "custom_query"} {
		action, err := ParseAction(name)
		require.NoError(t, err)
		assert.Equal(t, Action(name), action)
	}

	_, err := ParseAction("delete")
	assert.True(t, pkgerrors.IsValidation(err))
}

func TestExpandCreatesFollowUpAndMaterializes(t *testing.T) {
	f := newFixture(t, withAnswering(staticAnswer("deeper")))
	query := f.addQuery(t, "q")
	answer := f.addAnswer(t, query, "a", "b", "c")

	result, err := f.dispatcher.OnExpand(context.Background(), BulletIntent{
		AnswerID: answer.ID().String(),
		Index:    1,
	})
	require.NoError(t, err)
	assert.Equal(t, ActionExpand, result.Action)

	followUp, ok := f.graph.GetNode(result.NodeID)
	require.True(t, ok)
	assert.Equal(t, valueobjects.KindQuery, followUp.Kind())
	assert.Equal(t, "b", followUp.Text())
	require.NotNil(t, followUp.Anchor())
	assert.Equal(t, 1, followUp.Anchor().Index)

	edge, ok := f.graph.GetEdge(result.EdgeID)
	require.True(t, ok)
	assert.Equal(t, answer.ID(), edge.Source())
	assert.Equal(t, followUp.ID(), edge.Target())
	assert.Equal(t, entities.EdgeKindFollowUp, edge.Kind())

	require.NotNil(t, result.Task)
	assert.Equal(t, TaskCompleted, waitTask(t, result.Task))
	child, ok := f.graph.GetNode(result.Task.AnswerID())
	require.True(t, ok)
	assert.Equal(t, []string{"deeper"}, child.Bullets())
}

func TestCustomQueryUsesUserText(t *testing.T) {
	f := newFixture(t)
	query := f.addQuery(t, "q")
	answer := f.addAnswer(t, query, "a", "b")

	result, err := f.dispatcher.OnCustomQuery(context.Background(), BulletIntent{
		AnswerID: answer.ID().String(),
		Index:    0,
		Text:     "  How fast are sea levels rising?  ",
	})
	require.NoError(t, err)

	followUp, ok := f.graph.GetNode(result.NodeID)
	require.True(t, ok)
	assert.Equal(t, "How fast are sea levels rising?", followUp.Text())
	waitTask(t, result.Task)
}

func TestCustomQueryRejectsBlankText(t *testing.T) {
	f := newFixture(t)
	query := f.addQuery(t, "q")
	answer := f.addAnswer(t, query, "a")
	before := f.graph.Version()

	_, err := f.dispatcher.OnCustomQuery(context.Background(), BulletIntent{
		AnswerID: answer.ID().String(),
		Index:    0,
		Text:     " \n ",
	})
	assert.True(t, pkgerrors.IsEmptyInput(err))
	assert.Equal(t, before, f.graph.Version())
}

func TestInvalidBulletReferences(t *testing.T) {
	f := newFixture(t)
	query := f.addQuery(t, "q")
	answer := f.addAnswer(t, query, "a", "b", "c", "d")

	tests := []struct {
		name   string
		intent BulletIntent
	}{
		{name: "index past the end", intent: BulletIntent{AnswerID: answer.ID().String(), Index: 5}},
		{name: "index equal to length", intent: BulletIntent{AnswerID: answer.ID().String(), Index: 4}},
		{name: "negative index", intent: BulletIntent{AnswerID: answer.ID().String(), Index: -1}},
		{name: "unknown answer", intent: BulletIntent{AnswerID: "answer-999", Index: 0}},
		{name: "not an answer", intent: BulletIntent{AnswerID: query.ID().String(), Index: 0}},
		{name: "malformed id", intent: BulletIntent{AnswerID: "bogus", Index: 0}},
		{name: "empty id", intent: BulletIntent{Index: 0}},
		{name: "stale bullet text", intent: BulletIntent{AnswerID: answer.ID().String(), Index: 0, BulletText: "z"}},
	}

	for _, action := range []Action{ActionExpand, ActionSources, ActionCustomQuery} {
		for _, tt := range tests {
			t.Run(string(action)+"/"+tt.name, func(t *testing.T) {
				before := f.graph.Version()
				intent := tt.intent
				intent.Text = "question"

				_, err := f.dispatcher.Dispatch(context.Background(), action, intent)
				assert.True(t, pkgerrors.IsInvalidBulletReference(err), "unexpected error: %v", err)
				assert.Equal(t, before, f.graph.Version(), "a rejected intent must not mutate the graph")
			})
		}
	}
}

func TestMatchingBulletTextIsAccepted(t *testing.T) {
	f := newFixture(t)
	query := f.addQuery(t, "q")
	answer := f.addAnswer(t, query, "a", "b")

	result, err := f.dispatcher.OnExpand(context.Background(), BulletIntent{
		AnswerID:   answer.ID().String(),
		Index:      1,
		BulletText: "b",
	})
	require.NoError(t, err)
	waitTask(t, result.Task)
}

func TestSourcesCreatesSourcesNode(t *testing.T) {
	search := ports.SearchFunc(func(ctx context.Context, query string) ([]ports.SearchResult, error) {
		return []ports.SearchResult{
			{URL: "https://www.ipcc.ch/report/ar6/syr/", Title: "IPCC AR6"},
			{URL: "not a url"},
			{URL: ""},
			{URL: "https://climate.nasa.gov/"},
		}, nil
	})
	f := newFixture(t, withSearch(search))
	query := f.addQuery(t, "q")
	answer := f.addAnswer(t, query, "a", "b")

	result, err := f.dispatcher.OnSources(context.Background(), BulletIntent{
		AnswerID: answer.ID().String(),
		Index:    1,
	})
	require.NoError(t, err)
	assert.Nil(t, result.Task)

	sources, ok := f.graph.GetNode(result.NodeID)
	require.True(t, ok)
	assert.Equal(t, valueobjects.KindSources, sources.Kind())
	items := sources.Items()
	require.Len(t, items, 2, "unusable results are skipped")
	assert.Equal(t, "IPCC AR6", items[0].Title)
	assert.False(t, items[1].HasTitle())

	edge, ok := f.graph.GetEdge(result.EdgeID)
	require.True(t, ok)
	assert.Equal(t, entities.EdgeKindSources, edge.Kind())
	assert.Equal(t, answer.ID(), edge.Source())
}

func TestSourcesWithNoResults(t *testing.T) {
	f := newFixture(t)
	query := f.addQuery(t, "q")
	answer := f.addAnswer(t, query, "a")

	result, err := f.dispatcher.OnSources(context.Background(), BulletIntent{AnswerID: answer.ID().String(), Index: 0})
	require.NoError(t, err)

	sources, ok := f.graph.GetNode(result.NodeID)
	require.True(t, ok)
	assert.Empty(t, sources.Items())
}

func TestSourcesSearchFailureLeavesGraphUntouched(t *testing.T) {
	search := ports.SearchFunc(func(ctx context.Context, query string) ([]ports.SearchResult, error) {
		return nil, errors.New("search backend down")
	})
	f := newFixture(t, withSearch(search))
	query := f.addQuery(t, "q")
	answer := f.addAnswer(t, query, "a")
	before := f.graph.Version()

	_, err := f.dispatcher.OnSources(context.Background(), BulletIntent{AnswerID: answer.ID().String(), Index: 0})
	assert.True(t, pkgerrors.IsType(err, pkgerrors.ExternalError))
	assert.Equal(t, before, f.graph.Version())
}

func TestSubmitQuery(t *testing.T) {
	f := newFixture(t)

	result, err := f.dispatcher.SubmitQuery(context.Background(), "What is Climate Change?")
	require.NoError(t, err)
	assert.Equal(t, ActionSubmitQuery, result.Action)
	assert.Equal(t, TaskCompleted, waitTask(t, result.Task))

	query, ok := f.graph.GetNode(result.NodeID)
	require.True(t, ok)
	assert.Nil(t, query.Anchor())

	before := f.graph.Version()
	_, err = f.dispatcher.SubmitQuery(context.Background(), "   ")
	assert.True(t, pkgerrors.IsEmptyInput(err))
	assert.Equal(t, before, f.graph.Version())
}

func TestRegisterCustomAction(t *testing.T) {
	f := newFixture(t)
	query := f.addQuery(t, "q")
	answer := f.addAnswer(t, query, "a")

	var got ResolvedBullet
	err := f.dispatcher.Register("highlight", func(ctx context.Context, target ResolvedBullet, intent BulletIntent) (*DispatchResult, error) {
		got = target
		return &DispatchResult{Action: "highlight", NodeID: target.Answer.ID()}, nil
	})
	require.NoError(t, err)

	_, err = f.dispatcher.Dispatch(context.Background(), "highlight", BulletIntent{AnswerID: answer.ID().String(), Index: 0})
	require.NoError(t, err)
	assert.Equal(t, "a", got.Text)

	err = f.dispatcher.Register(ActionExpand, nil)
	assert.True(t, pkgerrors.IsConflict(err))

	_, err = f.dispatcher.Dispatch(context.Background(), "unknown", BulletIntent{AnswerID: answer.ID().String()})
	assert.True(t, pkgerrors.IsValidation(err))
}
