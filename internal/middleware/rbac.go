package middleware

import (
	"fmt"
	"sort"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/rankpaper-api/internal/utils"
)

// Roles understood by the attempt engine.
const (
	RoleAdmin   = "admin"
	RoleTeacher = "teacher"
	RoleStudent = "student"
)

// RequireRole ensures that the authenticated user possesses one of the allowed roles.
// Reviewer routes use RequireRole(RoleAdmin, RoleTeacher).
func RequireRole(roles ...string) fiber.Handler {
	allowed := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		normalized := strings.ToLower(strings.TrimSpace(role))
		if normalized != "" {
			allowed[normalized] = struct{}{}
		}
	}

	required := make([]string, 0, len(allowed))
	for role := range allowed {
		required = append(required, role)
	}
	sort.Strings(required)

	return func(c *fiber.Ctx) error {
		role := normalizeRoleValue(c.Locals("user_role"))
		if role == "" {
			return utils.Fail(c, fiber.StatusUnauthorized, "authentication required", nil)
		}
		if _, ok := allowed[role]; !ok {
			return utils.Fail(c, fiber.StatusForbidden, "insufficient permissions", fiber.Map{"required_roles": required})
		}
		return c.Next()
	}
}

func normalizeRoleValue(value interface{}) string {
	switch v := value.(type) {
	case string:
		return strings.ToLower(strings.TrimSpace(v))
	case fmt.Stringer:
		return strings.ToLower(strings.TrimSpace(v.String()))
	default:
		if value == nil {
			return ""
		}
		return strings.ToLower(strings.TrimSpace(fmt.Sprintf("%v", value)))
	}
}
