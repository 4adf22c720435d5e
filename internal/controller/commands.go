package controller

import (
	"context"
	"fmt"
	"strings"

	"github.com/danmuck/unitconsole/internal/args"
	"github.com/danmuck/unitconsole/internal/console"
	"github.com/danmuck/unitconsole/internal/observability"
	"github.com/danmuck/unitconsole/internal/repeat"
	"github.com/danmuck/unitconsole/internal/selector"
	"github.com/danmuck/unitconsole/internal/unit"
	"github.com/rs/zerolog/log"
)

const missingSelector = "expected at least one unit selector"

func registerCommands(s *Service) error {
	cmds := []console.Command{
		{
			Name:    "dump",
			Summary: "print the units matching one selector",
			Arg:     args.Erase[selector.Selector](selector.Some()),
			Run:     s.runDump,
		},
		{
			Name:    "shutdown",
			Summary: "stop every unit matching the selectors",
			Arg:     args.Erase[[]selector.Selector](repeat.Some[selector.Selector](selector.Some(), missingSelector)),
			Run:     s.setRunning(false),
		},
		{
			Name:    "turnon",
			Summary: "start every unit matching the selectors",
			Arg:     args.Erase[[]selector.Selector](repeat.Some[selector.Selector](selector.Some(), missingSelector)),
			Run:     s.setRunning(true),
		},
		{
			Name:    "list",
			Summary: "list units, optionally filtered by selectors",
			Arg:     args.Erase[[]selector.Selector](repeat.Any[selector.Selector](selector.Many())),
			Run:     s.runList,
		},
	}
	for _, cmd := range cmds {
		if err := s.console.Register(cmd); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) runDump(_ context.Context, inv console.Invocation) (string, error) {
	sel, ok := inv.Value.(selector.Selector)
	if !ok {
		return "", fmt.Errorf("dump: unexpected argument %T", inv.Value)
	}
	units, err := sel.Resolve(inv.Source)
	if err != nil {
		return "", err
	}
	observability.RecordUnitsResolved(inv.Command, len(units))
	return formatUnits(units), nil
}

func (s *Service) runList(_ context.Context, inv console.Invocation) (string, error) {
	sels, ok := inv.Value.([]selector.Selector)
	if !ok {
		return "", fmt.Errorf("list: unexpected argument %T", inv.Value)
	}
	var units []unit.Unit
	if len(sels) == 0 {
		units = s.units.All()
	} else {
		var err error
		if units, err = selector.Unwrap(inv.Source, sels); err != nil {
			return "", err
		}
	}
	observability.RecordUnitsResolved(inv.Command, len(units))
	if len(units) == 0 {
		return "no units", nil
	}
	return formatUnits(units), nil
}

func (s *Service) setRunning(running bool) console.Action {
	verb, state := "stopped", "stopped"
	if running {
		verb, state = "started", "running"
	}
	return func(_ context.Context, inv console.Invocation) (string, error) {
		sels, ok := inv.Value.([]selector.Selector)
		if !ok {
			return "", fmt.Errorf("%s: unexpected argument %T", inv.Command, inv.Value)
		}
		units, err := selector.Unwrap(inv.Source, sels)
		if err != nil {
			return "", err
		}
		observability.RecordUnitsResolved(inv.Command, len(units))
		lines := make([]string, 0, len(units))
		for _, u := range units {
			changed, err := s.units.SetRunning(u.Handle, running)
			if err != nil {
				return "", err
			}
			if !changed {
				lines = append(lines, fmt.Sprintf("%d already %s", u.Handle, state))
				continue
			}
			log.Info().
				Int32("handle", u.Handle).
				Int32("id", u.ID).
				Bool("running", running).
				Msg("controller.unit state changed")
			lines = append(lines, fmt.Sprintf("%d %s", u.Handle, verb))
		}
		return strings.Join(lines, "\n"), nil
	}
}

func formatUnits(units []unit.Unit) string {
	lines := make([]string, 0, len(units))
	for _, u := range units {
		lines = append(lines, u.String())
	}
	return strings.Join(lines, "\n")
}
