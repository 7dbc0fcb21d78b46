// Package taskbuilder expands {{dotted.path}} templates in a level
// definition against the evidence/parent/outputPath context, producing the
// brief handed to the Worker Gateway.
package taskbuilder

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/rohankatakam/strategos-engine/internal/model"
)

var templateToken = regexp.MustCompile(`\{\{([a-zA-Z0-9_.]+)\}\}`)

// Build expands every {{...}} token in a LevelDef's task fields against ctx,
// returning the fully-interpolated brief. Unresolved tokens are left intact
// in the output so the task remains inspectable.
func Build(level model.LevelDef, ctx model.TaskBuilderContext) model.BuiltTask {
	root := contextMap(ctx)

	keyTasks := make([]string, len(level.Task.KeyTasks))
	for i, t := range level.Task.KeyTasks {
		keyTasks[i] = interpolate(t, root)
	}

	return model.BuiltTask{
		Purpose:              interpolate(level.Task.Purpose, root),
		KeyTasks:             keyTasks,
		EndState:             interpolate(level.Task.EndState, root),
		RequiredOutputSchema: level.RequiredOutputs,
		WorkerTemplate:       level.WorkerTemplate,
		LevelName:            level.Name,
	}
}

// interpolate replaces every {{a.b.c}} occurrence in s with the dotted-path
// lookup against root. A path that doesn't resolve leaves the original
// token untouched.
func interpolate(s string, root map[string]interface{}) string {
	return templateToken.ReplaceAllStringFunc(s, func(token string) string {
		path := templateToken.FindStringSubmatch(token)[1]
		val, ok := lookup(root, strings.Split(path, "."))
		if !ok {
			return token
		}
		return stringify(val)
	})
}

func contextMap(ctx model.TaskBuilderContext) map[string]interface{} {
	m := map[string]interface{}{
		"evidence": map[string]interface{}{
			"id":               ctx.Evidence.ID,
			"type":             string(ctx.Evidence.Type),
			"sourceRating":     string(ctx.Evidence.SourceRating),
			"infoRating":       int(ctx.Evidence.InfoRating),
			"description":      ctx.Evidence.Description,
			"triggeredPathway": ctx.Evidence.TriggeredPathway,
			"citation": map[string]interface{}{
				"text": ctx.Evidence.Citation.Text,
				"url":  ctx.Evidence.Citation.URL,
				"year": ctx.Evidence.Citation.Year,
			},
		},
		"outputPath": ctx.OutputPath,
	}

	if ctx.Parent != nil {
		m["parent"] = map[string]interface{}{
			"pathwayId":     ctx.Parent.PathwayID,
			"depth":         ctx.Parent.Depth,
			"evidenceFound": ctx.Parent.EvidenceFound,
			"sourceRating":  string(ctx.Parent.SourceRating),
			"infoRating":    int(ctx.Parent.InfoRating),
			"findings":      ctx.Parent.Findings,
			"branchSignals": ctx.Parent.BranchSignals,
		}
	} else {
		m["parent"] = map[string]interface{}{}
	}

	return m
}

// lookup walks a dotted path through nested maps/structs. Returns ok=false
// if any segment fails to resolve.
func lookup(root interface{}, segments []string) (interface{}, bool) {
	current := root
	for _, seg := range segments {
		m, ok := current.(map[string]interface{})
		if !ok {
			return nil, false
		}
		v, ok := m[seg]
		if !ok {
			return nil, false
		}
		current = v
	}
	return current, true
}

func stringify(v interface{}) string {
	if v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case float64:
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", v)
	}
}
