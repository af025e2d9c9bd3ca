package members

import (
	"errors"
	"fmt"

	"github.com/hupe1980/toolflow/core"
	"github.com/hupe1980/toolflow/tool"
)

// ToolName is the name the lookup tool is registered under.
const ToolName = "member_lookup"

const toolDescription = "Useful for looking up insurance member details: member id, name, " +
	"policy type, policy number, last claim type and last claim amount. " +
	"Search by member name or member id; omit both to list all members."

type lookupArgs struct {
	Name     string `json:"name,omitempty" description:"Full or partial member name, case insensitive"`
	MemberID string `json:"member_id,omitempty" description:"Member id such as M001"`
}

// NewLookupTool exposes store as a tool. A lookup that matches nothing is
// not an error; the tool reports it in its result so the model can answer.
func NewLookupTool(store Store) tool.Tool {
	return tool.NewTypedTool(ToolName, toolDescription,
		func(tc *core.ToolContext, in lookupArgs) (any, error) {
			ctx := tc.Context()

			switch {
			case in.MemberID != "":
				m, err := store.FindByID(ctx, in.MemberID)
				if errors.Is(err, ErrNotFound) {
					return fmt.Sprintf("No member with id %s.", in.MemberID), nil
				}
				if err != nil {
					return nil, err
				}
				return m, nil
			case in.Name != "":
				found, err := store.FindByName(ctx, in.Name)
				if err != nil {
					return nil, err
				}
				if len(found) == 0 {
					return fmt.Sprintf("No member named %s.", in.Name), nil
				}
				tc.LogDebug("members.lookup", "name", in.Name, "matches", len(found))
				return found, nil
			default:
				return store.List(ctx)
			}
		})
}
