package engine

import (
	"github.com/dipan99/mindmapper/domain/core/entities"
	"github.com/dipan99/mindmapper/domain/core/valueobjects"
)

// Demo graph shown on a fresh canvas
const DemoQuery = "What is Climate Change?"

// DemoBullets are the bullets of the demo answer
var DemoBullets = []string{
	"Greenhouse gas emissions are the main driver of rising global temperatures",
	"Sea level rise threatens coastal communities and biodiversity",
	"International agreements like Paris Accord aim to limit temperature increases",
	"Low-lying cities face frequent flooding and infrastructure loss",
}

// seedDemo registers query-1 and answer-1 and moves the allocator past them
func (e *Engine) seedDemo() error {
	queryID, err := valueobjects.NewNodeID(valueobjects.KindQuery, 1)
	if err != nil {
		return err
	}
	answerID, err := valueobjects.NewNodeID(valueobjects.KindAnswer, 1)
	if err != nil {
		return err
	}

	queryPos, err := valueobjects.NewPosition(250, 50)
	if err != nil {
		return err
	}
	answerPos, err := valueobjects.NewPosition(200, 180)
	if err != nil {
		return err
	}

	query, err := entities.NewQueryNode(queryID, DemoQuery, queryPos)
	if err != nil {
		return err
	}
	answer, err := entities.NewAnswerNode(answerID, DemoBullets, answerPos)
	if err != nil {
		return err
	}
	edge, err := entities.NewEdge(queryID, answerID)
	if err != nil {
		return err
	}

	if err := e.graph.AddNode(query); err != nil {
		return err
	}
	if err := e.graph.AddNode(answer); err != nil {
		return err
	}
	if err := e.graph.AddEdge(edge); err != nil {
		return err
	}

	e.ids.AdvancePast(queryID)
	e.ids.AdvancePast(answerID)
	// seeding is not user activity
	e.graph.DrainEvents()
	return nil
}
