package model

type RoleTitle string

const (
	RoleAdmin    RoleTitle = "ADMIN"
	RoleCustomer RoleTitle = "CUSTOMER"
)

// Role 初始化后不再修改
type Role struct {
	UUIDBase
	Title RoleTitle `gorm:"size:32;not null;uniqueIndex" json:"title"`
}

func DefaultRoles() []RoleTitle {
	return []RoleTitle{RoleAdmin, RoleCustomer}
}
