package model

import "time"

// UserRole is the account tier. Team members are advanced, everyone else basic.
type UserRole string

const (
	UserRoleBasic    UserRole = "basic"
	UserRoleAdvanced UserRole = "advanced"
)

type TeamRole string

const (
	TeamRoleOwner  TeamRole = "owner"
	TeamRoleAdmin  TeamRole = "admin"
	TeamRoleMember TeamRole = "member"
)

func (r TeamRole) Valid() bool {
	switch r {
	case TeamRoleOwner, TeamRoleAdmin, TeamRoleMember:
		return true
	}
	return false
}

// Assignable reports whether the role can be granted by invitation or role update.
// Ownership only moves through a transfer.
func (r TeamRole) Assignable() bool {
	return r == TeamRoleAdmin || r == TeamRoleMember
}

func (r TeamRole) CanManageMembers() bool {
	return r == TeamRoleOwner || r == TeamRoleAdmin
}

// Membership ties a user to a team. A nil membership means the user has no team,
// so a team id without a role (or the reverse) cannot be expressed.
type Membership struct {
	TeamID int64    `json:"team_id"`
	Role   TeamRole `json:"team_role"`
}

type User struct {
	ID                       int64       `json:"id"`
	Name                     string      `json:"name"`
	Email                    string      `json:"email"`
	PasswordHash             string      `json:"-"`
	Role                     UserRole    `json:"role"`
	Membership               *Membership `json:"membership,omitempty"`
	IsActive                 bool        `json:"is_active"`
	EmailVerified            bool        `json:"email_verified"`
	EmailVerificationToken   *string     `json:"-"`
	EmailVerificationExpires *time.Time  `json:"-"`
	PasswordResetToken       *string     `json:"-"`
	PasswordResetExpires     *time.Time  `json:"-"`
	CreatedAt                time.Time   `json:"created_at"`
	UpdatedAt                time.Time   `json:"updated_at"`
}

func (u *User) HasTeam() bool {
	return u.Membership != nil
}

func (u *User) InTeam(teamID int64) bool {
	return u.Membership != nil && u.Membership.TeamID == teamID
}

// TeamRoleIn returns the user's role in the given team, if they belong to it.
func (u *User) TeamRoleIn(teamID int64) (TeamRole, bool) {
	if !u.InTeam(teamID) {
		return "", false
	}
	return u.Membership.Role, true
}

// JoinTeam attaches the user to a team and promotes the account tier.
func (u *User) JoinTeam(teamID int64, role TeamRole) {
	u.Membership = &Membership{TeamID: teamID, Role: role}
	u.Role = UserRoleAdvanced
}

// LeaveTeam clears the membership and demotes the account tier.
func (u *User) LeaveTeam() {
	u.Membership = nil
	u.Role = UserRoleBasic
}
