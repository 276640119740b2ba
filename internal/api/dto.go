package api

import (
	"github.com/starford/onto/internal/graph"
	"github.com/starford/onto/internal/index"
	"github.com/starford/onto/internal/service"
	"github.com/starford/onto/internal/validator"
)

// ValidateResponse wraps a validation report.
type ValidateResponse struct {
	Passed bool              `json:"passed"`
	Strict bool              `json:"strict"`
	Report *validator.Report `json:"report"`
}

// ValidationFailedResponse is returned (422) when the commit gate rejects a write.
type ValidationFailedResponse struct {
	Error  string            `json:"error"`
	Path   string            `json:"path"`
	Report *validator.Report `json:"report"`
}

// SearchResponse wraps search hits.
type SearchResponse struct {
	Query   string        `json:"query"`
	Results []service.Hit `json:"results"`
}

// GraphResponse is the neighbourhood of one instance.
type GraphResponse struct {
	Start string       `json:"start"`
	Depth int          `json:"depth"`
	Nodes []graph.Node `json:"nodes"`
	Links []graph.Link `json:"links"`
	Steps []graph.Step `json:"steps"`
}

// InstanceListResponse wraps a page of instances.
type InstanceListResponse struct {
	Instances []index.InstanceRow `json:"instances"`
	Total     int                 `json:"total"`
}

// ClassCountsResponse lists instance counts per class.
type ClassCountsResponse struct {
	Classes []index.ClassCount `json:"classes"`
}

// CreateInstanceRequest is the request body for creating an instance.
type CreateInstanceRequest = service.CreateInstanceRequest

// InstanceDetail is a single instance with its edges.
type InstanceDetail = service.InstanceDetail

// WriteResponse is returned after a committed write.
type WriteResponse = service.WriteResult

// WriteFileRequest is the request body for replacing a store file.
type WriteFileRequest struct {
	Content string `json:"content"`
}
