package rbac

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAllowed(t *testing.T) {
	tests := []struct {
		name   string
		role   Role
		action Action
		want   bool
	}{
		{"admin creates game", RoleAdmin, ActionCreateGame, true},
		{"admin deletes game", RoleAdmin, ActionDeleteGame, true},
		{"admin changes role", RoleAdmin, ActionChangeUserRole, true},
		{"admin edits game", RoleAdmin, ActionEditGame, true},
		{"moderator edits game", RoleModerator, ActionEditGame, true},
		{"moderator deletes comment", RoleModerator, ActionDeleteComment, true},
		{"critic creates review", RoleCritic, ActionCreateReview, true},
		{"critic manages profile", RoleCritic, ActionManageCriticProfile, true},

		{"moderator cannot create game", RoleModerator, ActionCreateGame, false},
		{"moderator cannot delete game", RoleModerator, ActionDeleteGame, false},
		{"moderator cannot change roles", RoleModerator, ActionChangeUserRole, false},
		{"critic cannot delete comment", RoleCritic, ActionDeleteComment, false},
		{"admin cannot create review", RoleAdmin, ActionCreateReview, false},
		{"admin cannot delete comment", RoleAdmin, ActionDeleteComment, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, Allowed(tt.role, tt.action))
		})
	}
}

// Nothing gated is reachable by a plain user.
func TestAllowed_PlainUserDeniedEverywhere(t *testing.T) {
	for action := range policy {
		require.False(t, Allowed(RoleUser, action), "user must be denied %s", action)
	}
}

// Identical inputs always yield identical results.
func TestAllowed_Deterministic(t *testing.T) {
	for i := 0; i < 3; i++ {
		require.True(t, Allowed(RoleAdmin, ActionCreateGame))
		require.False(t, Allowed(RoleUser, ActionCreateGame))
	}
}

func TestValid(t *testing.T) {
	for _, s := range []string{"admin", "moderator", "critic", "user"} {
		require.True(t, Valid(s))
	}
	require.False(t, Valid("superadmin"))
	require.False(t, Valid(""))
	require.False(t, Valid("Admin"))
}
