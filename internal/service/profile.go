package service

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	jmespath "github.com/jmespath-community/go-jmespath"

	domainauth "github.com/target/laptopdoc/internal/domain/auth"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// profileDTO is the /auth/me payload. Some deployments wrap it in {"user": ...}.
type profileDTO struct {
	ID    domainauth.UserID `json:"id"    validate:"required"`
	Name  string            `json:"name"`
	Email string            `json:"email" validate:"omitempty,email"`
	Role  string            `json:"role"  validate:"omitempty,oneof=user engineer admin"`
}

// decodeProfile validates a profile payload and maps it to a User.
// An absent role defaults to user.
func decodeProfile(raw any) (domainauth.User, error) {
	node, err := jmespath.Search("user || @", raw)
	if err != nil {
		return domainauth.User{}, fmt.Errorf("select profile: %w", err)
	}
	buf, err := json.Marshal(node)
	if err != nil {
		return domainauth.User{}, fmt.Errorf("encode profile: %w", err)
	}
	var dto profileDTO
	if err := json.Unmarshal(buf, &dto); err != nil {
		return domainauth.User{}, fmt.Errorf("decode profile: %w", err)
	}
	dto.Role = strings.ToLower(strings.TrimSpace(dto.Role))
	if err := validate.Struct(dto); err != nil {
		return domainauth.User{}, fmt.Errorf("invalid profile: %w", err)
	}

	role := domainauth.RoleUser
	if r, ok := domainauth.ParseRole(dto.Role); ok {
		role = r
	}
	return domainauth.User{ID: dto.ID, Name: dto.Name, Email: dto.Email, Role: role}, nil
}

// loginToken extracts the bearer token and its scheme from a login response.
func loginToken(raw any) (token, tokenType string) {
	if v, err := jmespath.Search("access_token || token || data.access_token", raw); err == nil {
		token, _ = v.(string)
	}
	if v, err := jmespath.Search("token_type", raw); err == nil {
		tokenType, _ = v.(string)
	}
	if strings.TrimSpace(tokenType) == "" {
		tokenType = domainauth.DefaultTokenType
	}
	return strings.TrimSpace(token), tokenType
}
