package console

import (
	"fmt"

	"github.com/danmuck/unitconsole/internal/argsync"
)

// Node is the transmittable shape of one command.
type Node struct {
	Name       string
	Summary    string
	Descriptor []byte
}

// Tree exports every command with its binary argument descriptor. An
// argument type the registry cannot transmit fails the export.
func (c *Console) Tree(reg *argsync.Registry) ([]Node, error) {
	cmds := c.Commands()
	nodes := make([]Node, 0, len(cmds))
	for _, cmd := range cmds {
		node := Node{Name: cmd.Name, Summary: cmd.Summary}
		if cmd.Arg != nil {
			desc, err := reg.Encode(cmd.Arg)
			if err != nil {
				return nil, fmt.Errorf("command %s: %w", cmd.Name, err)
			}
			node.Descriptor = desc
		}
		nodes = append(nodes, node)
	}
	return nodes, nil
}

// Documents returns the structured descriptor of every command argument,
// keyed by command name. Commands without an argument are omitted.
func (c *Console) Documents(reg *argsync.Registry) (map[string]string, error) {
	out := make(map[string]string)
	for _, cmd := range c.Commands() {
		if cmd.Arg == nil {
			continue
		}
		doc, err := reg.EncodeJSON(cmd.Arg)
		if err != nil {
			return nil, fmt.Errorf("command %s: %w", cmd.Name, err)
		}
		out[cmd.Name] = doc
	}
	return out, nil
}

// Mirror rebuilds a console from synced nodes. Every mirrored command runs
// run, which typically forwards the line to the controller.
func Mirror(nodes []Node, reg *argsync.Registry, run Action) (*Console, error) {
	c := New()
	for _, node := range nodes {
		cmd := Command{Name: node.Name, Summary: node.Summary, Run: run}
		if len(node.Descriptor) > 0 {
			arg, err := reg.Decode(node.Descriptor)
			if err != nil {
				return nil, fmt.Errorf("command %s: %w", node.Name, err)
			}
			cmd.Arg = arg
		}
		if err := c.Register(cmd); err != nil {
			return nil, err
		}
	}
	return c, nil
}
