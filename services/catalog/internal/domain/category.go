package domain

import (
	"strings"
	"time"
)

type Category struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type CreateCategoryRequest struct {
	Name string `json:"name"`
}

func (r *CreateCategoryRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
}

func (r *CreateCategoryRequest) Validate() *ValidationErrors {
	errs := NewValidationErrors()
	if r.Name == "" {
		errs.Add("name", "can't be blank")
	}
	return errs
}
