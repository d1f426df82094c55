package task

// Node is an element of a task tree: a *Task leaf or a Group.
type Node interface {
	node()
}

// Group is an ordered collection of nodes. It only shapes the log; its
// children run in declaration order like any other level of the tree.
type Group []Node

func (Group) node() {}

// Seq builds a group from its children.
func Seq(children ...Node) Group {
	if children == nil {
		return Group{}
	}
	return Group(children)
}

// Count returns the number of leaves below n.
func Count(n Node) int {
	switch v := n.(type) {
	case *Task:
		if v == nil {
			return 0
		}
		return 1
	case Group:
		total := 0
		for _, child := range v {
			total += Count(child)
		}
		return total
	}
	return 0
}
