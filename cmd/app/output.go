package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/starford/onto/internal/graph"
	"github.com/starford/onto/internal/service"
	"github.com/starford/onto/internal/validator"
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeReport(w io.Writer, r *validator.Report, strict bool) error {
	for _, issue := range r.Issues() {
		loc := issue.Source
		if issue.Instance != "" {
			loc += " " + issue.Instance
		}
		if _, err := fmt.Fprintf(w, "%-7s [%s] %s: %s\n", issue.Severity, issue.Category, loc, issue.Message); err != nil {
			return err
		}
	}
	c := r.Counts
	status := "PASSED"
	if !r.Passed(strict) {
		status = "FAILED"
	}
	_, err := fmt.Fprintf(w,
		"%s: %d error(s), %d warning(s); %d files, %d classes, %d relations, %d instances, %d edges\n",
		status, len(r.Errors), len(r.Warnings), c.Files, c.Classes, c.Relations, c.Instances, c.Edges)
	return err
}

func writeHits(w io.Writer, hits []service.Hit) error {
	for _, h := range hits {
		var err error
		switch h.Kind {
		case service.HitRelation:
			_, err = fmt.Fprintf(w, "%s (%s) -[%s]-> %s", h.ID, h.Class, h.Edge.Relation, h.Edge.To)
			if err == nil && h.Qualifier != "" {
				_, err = fmt.Fprintf(w, " %s=%s", h.Qualifier, h.Value)
			}
		default:
			_, err = fmt.Fprintf(w, "%s (%s)", h.ID, h.Class)
			for _, m := range h.Matches {
				if err != nil {
					break
				}
				name := m.Property
				if m.Component != "" {
					name = m.Component + "." + name
				}
				_, err = fmt.Fprintf(w, " %s=%s", name, m.Value)
			}
		}
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "  %s\n", h.SourceFile); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "%d result(s)\n", len(hits))
	return err
}

func writeSteps(w io.Writer, steps []graph.Step) error {
	for _, s := range steps {
		if _, err := fmt.Fprintf(w, "%d %s -[%s]-> %s\n", s.Depth, s.ID, s.Relation, s.Target); err != nil {
			return err
		}
	}
	return nil
}
