package runtime

import (
	"context"
	"fmt"
	"math/rand"
	"strings"

	"github.com/habitatworks/habitat/internal/persona"
	"github.com/habitatworks/habitat/internal/tools"
)

var _ persona.WorldActions = (*City)(nil)

// toolRegistryFor builds the capability catalog for one persona. Movement
// and travel close over the persona id so the model cannot move anyone but
// itself, no matter what arguments it invents.
func (c *City) toolRegistryFor(personaID string) *tools.Registry {
	reg := tools.NewRegistry()

	reg.MustRegister(&tools.Tool{
		Name:        "look_around",
		Description: "List the buildings in town and who is in them.",
		Handler: func(ctx context.Context, args map[string]any) (string, map[string]any, error) {
			var b strings.Builder
			for _, bld := range c.buildings.Buildings() {
				occ := c.buildings.Occupants(bld.ID)
				slots := "open"
				if bld.Capacity > 0 {
					slots = fmt.Sprintf("%d/%d", len(occ), bld.Capacity)
				}
				fmt.Fprintf(&b, "%s (%s): %s\n", bld.Name, slots, occupantsOrEmpty(occ))
			}
			return strings.TrimRight(b.String(), "\n"), nil, nil
		},
	})

	reg.MustRegister(&tools.Tool{
		Name:        "local_time",
		Description: "Check the current date and time.",
		Handler: func(ctx context.Context, args map[string]any) (string, map[string]any, error) {
			return c.now().Format("Monday, 2 Jan 2006, 15:04"), nil, nil
		},
	})

	reg.MustRegister(&tools.Tool{
		Name:        "roll_dice",
		Description: "Roll a six-sided die for a game or a decision.",
		Handler: func(ctx context.Context, args map[string]any) (string, map[string]any, error) {
			n := rand.Intn(6) + 1
			return fmt.Sprintf("The die shows %d.", n), map[string]any{"roll": n}, nil
		},
	})

	if c.memory != nil {
		reg.MustRegister(&tools.Tool{
			Name:        "check_threads",
			Description: "Review recent conversation threads around town.",
			Handler: func(ctx context.Context, args map[string]any) (string, map[string]any, error) {
				if !c.memory.IsReady() {
					return "Your memory is hazy right now.", nil, nil
				}
				summaries, err := c.memory.ListThreadSummaries(ctx)
				if err != nil {
					return "", nil, err
				}
				if len(summaries) == 0 {
					return "No conversations on record yet.", nil, nil
				}
				var b strings.Builder
				for _, s := range summaries {
					marker := " "
					if s.Active {
						marker = "*"
					}
					fmt.Fprintf(&b, "%s %s: %s\n", marker, s.Suffix, s.Preview)
				}
				return strings.TrimRight(b.String(), "\n"), nil, nil
			},
		})
	}

	reg.MustRegister(&tools.Tool{
		Name:        "move_to",
		Description: "Walk to another building in this city.",
		Params:      []string{"building"},
		Handler: func(ctx context.Context, args map[string]any) (string, map[string]any, error) {
			dest, _ := args["building"].(string)
			if dest == "" {
				return "", nil, fmt.Errorf("argument %q is required", "building")
			}
			note, err := c.MoveTo(ctx, personaID, dest)
			if err != nil {
				return "", nil, err
			}
			return note, map[string]any{"moved_to": dest}, nil
		},
	})

	reg.MustRegister(&tools.Tool{
		Name:        "travel_to_city",
		Description: "Travel to another city entirely.",
		Params:      []string{"city"},
		Handler: func(ctx context.Context, args map[string]any) (string, map[string]any, error) {
			dest, _ := args["city"].(string)
			if dest == "" {
				return "", nil, fmt.Errorf("argument %q is required", "city")
			}
			note, err := c.DispatchTo(ctx, personaID, dest)
			if err != nil {
				return "", nil, err
			}
			return note, map[string]any{"dispatched_to": dest}, nil
		},
	})

	return reg
}

func occupantsOrEmpty(occ []string) string {
	if len(occ) == 0 {
		return "empty"
	}
	return strings.Join(occ, ", ")
}
