package mutation

import (
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"

	"admincore/domain/cache"
	"admincore/domain/optimistic"
	"admincore/infrastructure/gateway"
	"admincore/pkg/errors"
)

var validate = validator.New()

// Target describes one cached query a mutation affects
type Target struct {
	Resource string                 `validate:"required"`
	Params   map[string]interface{} `validate:"-"`
}

// Key resolves the target to its canonical cache key
func (t Target) Key() (cache.Key, error) {
	return cache.NewKey(t.Resource, t.Params)
}

// Command is the tagged union over mutation kinds. Each tag carries its own
// payload shape; the pipeline checks it at the boundary instead of sniffing
// runtime shapes.
type Command interface {
	Kind() optimistic.Kind
	Validate() error
	operation() gateway.Operation
}

// CreateCommand appends a new item to the targeted lists
type CreateCommand struct {
	Targets []Target               `validate:"required,min=1,dive"`
	Path    string                 `validate:"required,startswith=/"`
	Fields  map[string]interface{} `validate:"required"`
}

// Kind returns the mutation tag
func (c CreateCommand) Kind() optimistic.Kind { return optimistic.KindCreate }

// Validate checks the command payload
func (c CreateCommand) Validate() error {
	return checkStruct(c)
}

func (c CreateCommand) operation() gateway.Operation {
	return gateway.Operation{Method: http.MethodPost, Path: c.Path, Body: c.Fields}
}

// UpdateCommand replaces fields on an existing item
type UpdateCommand struct {
	Targets []Target               `validate:"required,min=1,dive"`
	Path    string                 `validate:"required,startswith=/"`
	ID      string                 `validate:"required"`
	Fields  map[string]interface{} `validate:"required"`
}

// Kind returns the mutation tag
func (c UpdateCommand) Kind() optimistic.Kind { return optimistic.KindUpdate }

// Validate checks the command payload
func (c UpdateCommand) Validate() error {
	return checkStruct(c)
}

func (c UpdateCommand) operation() gateway.Operation {
	return gateway.Operation{Method: http.MethodPut, Path: c.Path, Body: c.Fields}
}

// DeleteCommand removes an item by identifier
type DeleteCommand struct {
	Targets []Target `validate:"required,min=1,dive"`
	Path    string   `validate:"required,startswith=/"`
	ID      string   `validate:"required"`
}

// Kind returns the mutation tag
func (c DeleteCommand) Kind() optimistic.Kind { return optimistic.KindDelete }

// Validate checks the command payload
func (c DeleteCommand) Validate() error {
	return checkStruct(c)
}

func (c DeleteCommand) operation() gateway.Operation {
	return gateway.Operation{Method: http.MethodDelete, Path: c.Path}
}

// BulkDeleteCommand removes a set of items by identifier
type BulkDeleteCommand struct {
	Targets []Target `validate:"required,min=1,dive"`
	Path    string   `validate:"required,startswith=/"`
	IDs     []string `validate:"required,min=1,dive,required"`
}

// Kind returns the mutation tag
func (c BulkDeleteCommand) Kind() optimistic.Kind { return optimistic.KindBulkDelete }

// Validate checks the command payload
func (c BulkDeleteCommand) Validate() error {
	return checkStruct(c)
}

func (c BulkDeleteCommand) operation() gateway.Operation {
	return gateway.Operation{
		Method: http.MethodPost,
		Path:   c.Path,
		Body:   map[string]interface{}{"ids": c.IDs},
	}
}

// checkStruct translates validator failures into the validation error family
func checkStruct(cmd interface{}) error {
	if err := validate.Struct(cmd); err != nil {
		return errors.NewValidationError(fmt.Sprintf("invalid %T: %v", cmd, err))
	}
	return nil
}

// targetKeys resolves every target to its cache key
func targetKeys(targets []Target) ([]cache.Key, error) {
	keys := make([]cache.Key, 0, len(targets))
	for _, target := range targets {
		key, err := target.Key()
		if err != nil {
			return nil, errors.NewValidationError(fmt.Sprintf("invalid target: %v", err))
		}
		keys = append(keys, key)
	}
	return keys, nil
}
