package service

import (
	"context"
	"errors"
	"sync"

	"github.com/segfault/civicgrid/backend/internal/domain"
)

// TaskError accumulates multiple errors produced during bulk loading.
type TaskError struct {
	Errors []error
}

func (e *TaskError) Error() string {
	if len(e.Errors) == 0 {
		return "no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	msg := "multiple errors:"
	for _, err := range e.Errors {
		msg += " " + err.Error() + ";"
	}
	return msg
}

func (e *TaskError) append(err error) {
	if err == nil {
		return
	}
	e.Errors = append(e.Errors, err)
}

func (e *TaskError) asError() error {
	if len(e.Errors) == 0 {
		return nil
	}
	return e
}

// NetworkWriter is the storage contract for importing road networks.
type NetworkWriter interface {
	UpsertNode(ctx context.Context, node domain.Node) (string, error)
	CreateEdge(ctx context.Context, edge domain.Edge) error
}

// IssueWriter stores issue snapshots during seeding.
type IssueWriter interface {
	CreateIssue(ctx context.Context, issue domain.Issue) error
}

// BulkLoader imports road networks and issue seeds using worker pools.
// Nodes always load before edges so an edge never references a node the
// store has not seen yet.
type BulkLoader struct {
	network NetworkWriter
	issues  IssueWriter
	workers int
}

// NewBulkLoader creates a BulkLoader with the provided concurrency.
func NewBulkLoader(network NetworkWriter, issues IssueWriter, workers int) *BulkLoader {
	if workers <= 0 {
		workers = 4
	}
	return &BulkLoader{
		network: network,
		issues:  issues,
		workers: workers,
	}
}

// LoadNodes upserts the nodes concurrently and returns a mapping from each
// input node id to the id the store settled on (an earlier import of the
// same osmId wins).
func (l *BulkLoader) LoadNodes(ctx context.Context, nodes []domain.Node) (map[string]string, error) {
	idMap := make(map[string]string, len(nodes))
	var mu sync.Mutex

	err := l.run(ctx, len(nodes), func(idx int) error {
		storedID, err := l.network.UpsertNode(ctx, nodes[idx])
		if err != nil {
			return err
		}
		mu.Lock()
		idMap[nodes[idx].ID] = storedID
		mu.Unlock()
		return nil
	})
	return idMap, err
}

// LoadEdges stores the edges concurrently, remapping endpoints through
// idMap. Edges whose endpoints failed to load are skipped and reported.
func (l *BulkLoader) LoadEdges(ctx context.Context, edges []domain.Edge, idMap map[string]string) error {
	return l.run(ctx, len(edges), func(idx int) error {
		edge := edges[idx]
		start, ok := idMap[edge.StartNodeID]
		if !ok {
			return errors.New("edge " + edge.ID + " references unknown start node")
		}
		end, ok := idMap[edge.EndNodeID]
		if !ok {
			return errors.New("edge " + edge.ID + " references unknown end node")
		}
		edge.StartNodeID = start
		edge.EndNodeID = end
		return l.network.CreateEdge(ctx, edge)
	})
}

// LoadIssues stores the issue seeds concurrently.
func (l *BulkLoader) LoadIssues(ctx context.Context, issues []domain.Issue) error {
	return l.run(ctx, len(issues), func(idx int) error {
		return l.issues.CreateIssue(ctx, issues[idx])
	})
}

func (l *BulkLoader) run(ctx context.Context, total int, workerFn func(idx int) error) error {
	if total == 0 {
		return nil
	}
	indexCh := make(chan int)
	errCh := make(chan error, total)
	var wg sync.WaitGroup

	worker := func() {
		defer wg.Done()
		for idx := range indexCh {
			if err := workerFn(idx); err != nil {
				select {
				case errCh <- err:
				case <-ctx.Done():
					return
				}
			}
		}
	}

	for i := 0; i < l.workers; i++ {
		wg.Add(1)
		go worker()
	}

Loop:
	for i := 0; i < total; i++ {
		select {
		case indexCh <- i:
		case <-ctx.Done():
			break Loop
		}
	}
	close(indexCh)
	wg.Wait()
	close(errCh)

	var taskErr TaskError
	for err := range errCh {
		if err == nil {
			continue
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		taskErr.append(err)
	}
	return taskErr.asError()
}
