package storage

// Entity tables created by the embedded migrations.
var (
	UsersTable        = Table{Name: "users"}
	SpaceObjectsTable = Table{Name: "space_objects"}
	BattlesTable      = Table{Name: "battles", Columns: []string{"active"}}
	MessagesTable     = Table{Name: "messages", Columns: []string{"recipient"}}
)
