package rbac

// Role is the closed set of account roles. The column in the users table
// stores the string value directly.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleModerator Role = "moderator"
	RoleCritic    Role = "critic"
	RoleUser      Role = "user"
)

// Action is every role-gated operation in the API. Handlers never compare
// role strings themselves; they go through Allowed.
type Action string

const (
	ActionCreateGame          Action = "game:create"
	ActionEditGame            Action = "game:edit"
	ActionDeleteGame          Action = "game:delete"
	ActionDeleteComment       Action = "comment:delete"
	ActionCreateReview        Action = "review:create"
	ActionChangeUserRole      Action = "user:change_role"
	ActionManageCriticProfile Action = "critic:manage_profile"
)

var policy = map[Action][]Role{
	ActionCreateGame:          {RoleAdmin},
	ActionDeleteGame:          {RoleAdmin},
	ActionChangeUserRole:      {RoleAdmin},
	ActionEditGame:            {RoleAdmin, RoleModerator},
	ActionDeleteComment:       {RoleModerator},
	ActionCreateReview:        {RoleCritic},
	ActionManageCriticProfile: {RoleCritic},
}

// Valid reports whether s is one of the four known roles.
func Valid(s string) bool {
	switch Role(s) {
	case RoleAdmin, RoleModerator, RoleCritic, RoleUser:
		return true
	}
	return false
}

// Allowed reports whether the role may perform the action. Pure function of
// its inputs; ownership checks (e.g. a critic editing their own profile)
// stay in the handler.
func Allowed(role Role, action Action) bool {
	for _, r := range policy[action] {
		if r == role {
			return true
		}
	}
	return false
}
