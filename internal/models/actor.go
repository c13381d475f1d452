package models

// Role 用户角色
type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleVendor Role = "vendor"
	RoleAdmin  Role = "admin"
)

// Valid 是否为已知角色
func (r Role) Valid() bool {
	switch r {
	case RoleBuyer, RoleVendor, RoleAdmin:
		return true
	}
	return false
}

// Actor 发起操作的用户
type Actor struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}
