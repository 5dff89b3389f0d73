package identity

import "strings"

// PermissionLevel is the access level encoded in a page permission token.
type PermissionLevel string

const (
	LevelReadOnly    PermissionLevel = "ReadOnly"
	LevelFullControl PermissionLevel = "FullControl"
)

// AdminPage is the page name whose permission marks administrative access.
const AdminPage = "Admin"

// PagePermission is one parsed capability token.
type PagePermission struct {
	Page  string
	Level PermissionLevel
}

// ParsePermissions decodes a role's permission string. Tokens are comma
// separated and take the form "<Page>:<Level>". The legacy form is a bare
// page name with implied FullControl; both must be accepted.
func ParsePermissions(encoded string) []PagePermission {
	if strings.TrimSpace(encoded) == "" {
		return nil
	}
	var perms []PagePermission
	for _, token := range strings.Split(encoded, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		page, level, found := strings.Cut(token, ":")
		page = strings.TrimSpace(page)
		if page == "" {
			continue
		}
		if !found {
			perms = append(perms, PagePermission{Page: page, Level: LevelFullControl})
			continue
		}
		switch PermissionLevel(strings.TrimSpace(level)) {
		case LevelReadOnly:
			perms = append(perms, PagePermission{Page: page, Level: LevelReadOnly})
		case LevelFullControl:
			perms = append(perms, PagePermission{Page: page, Level: LevelFullControl})
		default:
			// Unknown level tokens grant nothing.
		}
	}
	return perms
}

// EncodePermissions renders tokens back into the stored string form.
func EncodePermissions(perms []PagePermission) string {
	parts := make([]string, 0, len(perms))
	for _, p := range perms {
		parts = append(parts, p.Page+":"+string(p.Level))
	}
	return strings.Join(parts, ",")
}

// HasPage reports whether the encoded permission string grants the page at
// the required level. FullControl satisfies a ReadOnly requirement.
func HasPage(encoded, page string, level PermissionLevel) bool {
	for _, p := range ParsePermissions(encoded) {
		if !strings.EqualFold(p.Page, page) {
			continue
		}
		if level == LevelReadOnly || p.Level == LevelFullControl {
			return true
		}
	}
	return false
}

// RolesGrant reports whether any of the roles grants the page at the level.
func RolesGrant(roles []Role, page string, level PermissionLevel) bool {
	for _, role := range roles {
		if HasPage(role.PagePermissions, page, level) {
			return true
		}
	}
	return false
}
