package steptree

import (
	"context"
	"fmt"
	"sync"

	"github.com/dukex/journeys/pkg/models"
)

// StepReader loads the persisted step rows of an automation.
type StepReader interface {
	StepsByAutomation(ctx context.Context, automationID int64) ([]*models.StepNode, error)
}

// Source hands out the step tree of an automation.
type Source interface {
	Tree(ctx context.Context, automationID int64) (*Tree, error)
}

// Loader builds a fresh tree from storage on every call.
type Loader struct {
	steps StepReader
}

// NewLoader creates a Source that always reads through to storage.
func NewLoader(steps StepReader) *Loader {
	return &Loader{steps: steps}
}

// Tree loads and indexes the steps of automationID.
func (l *Loader) Tree(ctx context.Context, automationID int64) (*Tree, error) {
	steps, err := l.steps.StepsByAutomation(ctx, automationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load steps of automation %d: %w", automationID, err)
	}

	return Build(automationID, steps), nil
}

// Cache memoizes trees per automation. Definitions change externally, so a
// cache is meant to live for a single scheduling tick and then be dropped.
type Cache struct {
	source Source

	mu    sync.Mutex
	trees map[int64]*Tree
}

// NewCache wraps source with a per-automation memo.
func NewCache(source Source) *Cache {
	return &Cache{
		source: source,
		trees:  make(map[int64]*Tree),
	}
}

// Tree returns the cached tree, loading it on first use. Failed loads are not cached.
func (c *Cache) Tree(ctx context.Context, automationID int64) (*Tree, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if tree, ok := c.trees[automationID]; ok {
		return tree, nil
	}

	tree, err := c.source.Tree(ctx, automationID)
	if err != nil {
		return nil, err
	}

	c.trees[automationID] = tree

	return tree, nil
}

// Len returns the number of cached trees.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.trees)
}
