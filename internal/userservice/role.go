package userservice

func (u *User) IsAnonymous() bool {
	return u == &AnonymousUser
}

func (u *User) IsActivated() bool {
	return u.Activated
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
