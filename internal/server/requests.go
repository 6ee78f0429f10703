package server

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/MarcoPoloResearchLab/flashdeck/internal/records"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

const defaultListSort = "created_at:desc"

var (
	errEmptyUpdate   = fmt.Errorf("%w: at least one field must be provided for update", records.ErrValidation)
	errMalformedBody = fmt.Errorf("%w: request body must be valid JSON", records.ErrValidation)
	registerTagsOnce sync.Once
)

type registerRequest struct {
	Email    string `json:"email" binding:"required,email,max=320"`
	Password string `json:"password" binding:"required,min=6,max=72"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type createDeckRequest struct {
	Name string `json:"name" binding:"required,max=255"`
}

func (r createDeckRequest) validate() error {
	return requireText("name", r.Name)
}

type updateDeckRequest struct {
	Name     *string `json:"name" binding:"omitempty,max=255"`
	Archived *bool   `json:"archived"`
}

func (r updateDeckRequest) validate() error {
	if r.Name == nil && r.Archived == nil {
		return errEmptyUpdate
	}
	if r.Name != nil {
		return requireText("name", *r.Name)
	}
	return nil
}

type createCardRequest struct {
	Front  string `json:"front" binding:"required"`
	Back   string `json:"back" binding:"required"`
	DeckID string `json:"deck_id" binding:"required,max=190"`
}

func (r createCardRequest) validate() error {
	if err := requireText("front", r.Front); err != nil {
		return err
	}
	if err := requireText("back", r.Back); err != nil {
		return err
	}
	return requireText("deck_id", r.DeckID)
}

type updateCardRequest struct {
	Front  *string `json:"front"`
	Back   *string `json:"back"`
	DeckID *string `json:"deck_id" binding:"omitempty,max=190"`
}

func (r updateCardRequest) validate() error {
	if r.Front == nil && r.Back == nil && r.DeckID == nil {
		return errEmptyUpdate
	}
	fields := []struct {
		name  string
		value *string
	}{
		{name: "front", value: r.Front},
		{name: "back", value: r.Back},
		{name: "deck_id", value: r.DeckID},
	}
	for _, field := range fields {
		if field.value == nil {
			continue
		}
		if err := requireText(field.name, *field.value); err != nil {
			return err
		}
	}
	return nil
}

type listQuery struct {
	IncludeArchived bool   `form:"includeArchived"`
	Sort            string `form:"sort"`
	Page            int    `form:"page" binding:"omitempty,min=1"`
	Limit           int    `form:"limit" binding:"omitempty,min=1,max=100"`
	DeckID          string `form:"deck_id" binding:"omitempty,max=190"`
}

func (q listQuery) options() records.ListOptions {
	sort := strings.TrimSpace(q.Sort)
	if sort == "" {
		sort = defaultListSort
	}
	options := records.ListOptions{
		IncludeArchived: q.IncludeArchived,
		Sort:            sort,
		Page:            q.Page,
		Limit:           q.Limit,
	}
	if deckID := strings.TrimSpace(q.DeckID); deckID != "" {
		options.Filters = map[string]any{"deck_id": deckID}
	}
	return options
}

func requireText(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%w: %s must not be empty", records.ErrValidation, field)
	}
	return nil
}

// bindingError turns gin binding failures into validation errors named by JSON field.
func bindingError(err error) error {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		messages := make([]string, 0, len(validationErrors))
		for _, fieldErr := range validationErrors {
			messages = append(messages, describeFieldError(fieldErr))
		}
		return fmt.Errorf("%w: %s", records.ErrValidation, strings.Join(messages, "; "))
	}
	return fmt.Errorf("%w: %v", errMalformedBody, err)
}

func describeFieldError(fieldErr validator.FieldError) string {
	switch fieldErr.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fieldErr.Field())
	case "email":
		return fmt.Sprintf("%s must be a valid email address", fieldErr.Field())
	case "min":
		return fmt.Sprintf("%s must be at least %s", fieldErr.Field(), fieldErr.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", fieldErr.Field(), fieldErr.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", fieldErr.Field(), fieldErr.Tag())
	}
}

// registerFieldNames makes validator report json/form names instead of Go field names.
func registerFieldNames() {
	registerTagsOnce.Do(func() {
		engine, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		engine.RegisterTagNameFunc(func(field reflect.StructField) string {
			for _, tag := range []string{"json", "form"} {
				name := strings.SplitN(field.Tag.Get(tag), ",", 2)[0]
				if name != "" && name != "-" {
					return name
				}
			}
			return field.Name
		})
	})
}
