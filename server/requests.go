package server

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/siherrmann/homegraph/model"
)

// NeighborhoodRequest selects a focus node, a depth and filters. Unset
// show flags default to true. EntityID is accepted as an alias of NodeID.
type NeighborhoodRequest struct {
	NodeID            string   `form:"node_id" json:"node_id" binding:"required_without=EntityID"`
	EntityID          string   `form:"entity_id" json:"entity_id"`
	MaxDepth          *int     `form:"max_depth" json:"max_depth"`
	ShowAreas         *bool    `form:"show_areas" json:"show_areas"`
	ShowZones         *bool    `form:"show_zones" json:"show_zones"`
	ShowLabels        *bool    `form:"show_labels" json:"show_labels"`
	Domains           []string `form:"domain" json:"domain_filter" binding:"omitempty,dive,required"`
	RelationshipTypes []string `form:"relationship" json:"relationship_filter" binding:"omitempty,dive,required"`
}

// Focus returns the requested focus id.
func (r NeighborhoodRequest) Focus() string {
	if r.NodeID != "" {
		return r.NodeID
	}
	return r.EntityID
}

// Depth returns the requested depth or fallback.
func (r NeighborhoodRequest) Depth(fallback int) int {
	if r.MaxDepth == nil {
		return fallback
	}
	return *r.MaxDepth
}

// Filters converts the request into query filters.
func (r NeighborhoodRequest) Filters() (model.Filters, error) {
	f := model.DefaultFilters()
	if r.ShowAreas != nil {
		f.ShowAreas = *r.ShowAreas
	}
	if r.ShowZones != nil {
		f.ShowZones = *r.ShowZones
	}
	if r.ShowLabels != nil {
		f.ShowLabels = *r.ShowLabels
	}
	f.Domains = r.Domains
	for _, t := range r.RelationshipTypes {
		rel := model.RelationshipType(t)
		if !rel.Valid() {
			return model.Filters{}, fmt.Errorf("unknown relationship type %q", t)
		}
		f.RelationshipTypes = append(f.RelationshipTypes, rel)
	}
	return f, nil
}

// SearchRequest searches nodes by id or name fragment.
type SearchRequest struct {
	Query string `form:"query" json:"query" binding:"required"`
	Limit int    `form:"limit" json:"limit" binding:"gte=0,lte=500"`
}

// ErrorResponse is the body of a failed HTTP request.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// Error codes shared by HTTP and websocket replies.
const (
	CodeInvalidFormat  = "invalid_format"
	CodeUnknownCommand = "unknown_command"
	CodeNotFound       = "not_found"
	CodeRateLimited    = "rate_limited"
	CodeInternalError  = "internal_error"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// requestValidator validates websocket payloads with the same tags gin
// uses for query binding.
func requestValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		validate.SetTagName("binding")
		validate.RegisterTagNameFunc(func(field reflect.StructField) string {
			name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}
