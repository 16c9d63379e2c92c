package repository

import (
	"context"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

type MockDriver struct {
	Queries []string
	Params  []map[string]any
	Results []neo4j.EagerResult
	Err     error
}

func (m *MockDriver) ExecuteQuery(ctx context.Context, query string, params map[string]any) (neo4j.EagerResult, error) {
	m.Queries = append(m.Queries, query)
	m.Params = append(m.Params, params)
	if m.Err != nil {
		return neo4j.EagerResult{}, m.Err
	}
	if len(m.Results) == 0 {
		return neo4j.EagerResult{}, nil
	}
	res := m.Results[0]
	m.Results = m.Results[1:]
	return res, nil
}

func (m *MockDriver) BuildIndices(ctx context.Context) error {
	return nil
}

func (m *MockDriver) Close(ctx context.Context) error {
	return nil
}

func todoRecords(todos ...[3]any) neo4j.EagerResult {
	res := neo4j.EagerResult{Keys: []string{"id", "title", "is_completed"}}
	for _, t := range todos {
		res.Records = append(res.Records, &neo4j.Record{
			Keys:   res.Keys,
			Values: []any{t[0], t[1], t[2]},
		})
	}
	return res
}
