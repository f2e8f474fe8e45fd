// Package steptree holds the in-memory representation of one automation's step
// tree and the traversal that decides which step runs after another.
package steptree

import (
	"sort"

	"github.com/dukex/journeys/pkg/models"
)

type groupKey struct {
	parentID int64
	branch   models.Branch
}

// Tree indexes the steps of a single automation by id and by sibling group.
// It is immutable once built and safe for concurrent use.
type Tree struct {
	automationID int64
	nodes        map[int64]*models.StepNode
	groups       map[groupKey][]*models.StepNode
	position     map[int64]int
}

// Build indexes steps belonging to automationID. Rows of other automations are ignored.
func Build(automationID int64, steps []*models.StepNode) *Tree {
	tree := &Tree{
		automationID: automationID,
		nodes:        make(map[int64]*models.StepNode, len(steps)),
		groups:       make(map[groupKey][]*models.StepNode),
		position:     make(map[int64]int, len(steps)),
	}

	for _, step := range steps {
		if step == nil || step.AutomationID != automationID {
			continue
		}

		node := *step
		node.Branch = models.NormalizeBranch(node.Branch)

		tree.nodes[node.ID] = &node
		key := groupKey{parentID: node.ParentID, branch: node.Branch}
		tree.groups[key] = append(tree.groups[key], &node)
	}

	for _, group := range tree.groups {
		sort.SliceStable(group, func(i, j int) bool {
			if group[i].Order != group[j].Order {
				return group[i].Order < group[j].Order
			}

			return group[i].ID < group[j].ID
		})

		for i, node := range group {
			tree.position[node.ID] = i
		}
	}

	return tree
}

// AutomationID returns the automation the tree was built for.
func (t *Tree) AutomationID() int64 {
	return t.automationID
}

// Len returns the number of steps in the tree.
func (t *Tree) Len() int {
	return len(t.nodes)
}

// Step resolves a step by id.
func (t *Tree) Step(id int64) (*models.StepNode, bool) {
	node, ok := t.nodes[id]

	return node, ok
}

// First returns the step a new journey starts at: the lowest ordered root step.
func (t *Tree) First() (*models.StepNode, bool) {
	return t.FirstChild(models.RootParentID, models.BranchNone)
}

// Children returns the ordered sibling group under parentID on the given branch.
func (t *Tree) Children(parentID int64, branch models.Branch) []*models.StepNode {
	return t.groups[groupKey{parentID: parentID, branch: models.NormalizeBranch(branch)}]
}

// FirstChild returns the lowest ordered step of a sibling group.
func (t *Tree) FirstChild(parentID int64, branch models.Branch) (*models.StepNode, bool) {
	children := t.Children(parentID, branch)
	if len(children) == 0 {
		return nil, false
	}

	return children[0], true
}

// NextSibling returns the step following ref within its own sibling group.
func (t *Tree) NextSibling(ref *models.StepNode) (*models.StepNode, bool) {
	node, ok := t.nodes[ref.ID]
	if !ok {
		return nil, false
	}

	group := t.groups[groupKey{parentID: node.ParentID, branch: node.Branch}]

	next := t.position[node.ID] + 1
	if next >= len(group) {
		return nil, false
	}

	return group[next], true
}

// Parent returns the step owning ref, or false for root steps.
func (t *Tree) Parent(ref *models.StepNode) (*models.StepNode, bool) {
	if ref.ParentID == models.RootParentID {
		return nil, false
	}

	parent, ok := t.nodes[ref.ParentID]

	return parent, ok
}

// Next resolves the step that runs after ref has finished (or after ref's
// chosen branch turned out empty). It takes ref's next sibling; when there is
// none it ascends to the parent and takes the parent's next sibling, never
// descending again. false means the walk is exhausted and the journey is done.
func (t *Tree) Next(ref *models.StepNode) (*models.StepNode, bool) {
	current, ok := t.nodes[ref.ID]
	if !ok {
		current = ref
	}

	// Each ascent moves one level up; the guard only matters for cyclic rows.
	for ascents := 0; ascents <= len(t.nodes); ascents++ {
		if sibling, ok := t.NextSibling(current); ok {
			return sibling, true
		}

		parent, ok := t.Parent(current)
		if !ok {
			return nil, false
		}

		current = parent
	}

	return nil, false
}

// Depth returns how many ancestors ref has; root steps have depth 0.
func (t *Tree) Depth(ref *models.StepNode) int {
	depth := 0
	current := ref

	for depth <= len(t.nodes) {
		parent, ok := t.Parent(current)
		if !ok {
			return depth
		}

		depth++
		current = parent
	}

	return depth
}
