package api

import (
	"github.com/schemajeli/schemajeli/internal/auth"
	"github.com/schemajeli/schemajeli/internal/types"
)

func (s *Server) routes() {
	v1 := s.app.Group("/api/v1")

	v1.Get("/health", s.health)

	authRoutes := v1.Group("/auth")
	authRoutes.Post("/login", s.login)
	authRoutes.Post("/logout", s.authenticate, s.logout)
	authRoutes.Get("/me", s.authenticate, s.me)
	authRoutes.Put("/password", s.authenticate, s.changePassword)

	svc := s.catalog

	mount(s, v1.Group("/servers", s.authenticate), resource[types.Server, types.CreateServerInput, types.UpdateServerInput, types.ServerFilter]{
		entity:  types.EntityServer,
		filter:  serverFilter,
		list:    svc.ListServers,
		get:     svc.GetServer,
		create:  svc.CreateServer,
		update:  svc.UpdateServer,
		remove:  svc.DeleteServer,
		restore: ignoreOptions(svc.RestoreServer),
		stats:   svc.ServerStats,
	}, catalogPermissions)

	mount(s, v1.Group("/databases", s.authenticate), resource[types.Database, types.CreateDatabaseInput, types.UpdateDatabaseInput, types.DatabaseFilter]{
		entity:  types.EntityDatabase,
		filter:  databaseFilter,
		list:    svc.ListDatabases,
		get:     svc.GetDatabase,
		create:  svc.CreateDatabase,
		update:  svc.UpdateDatabase,
		remove:  svc.DeleteDatabase,
		restore: ignoreOptions(svc.RestoreDatabase),
		stats:   svc.DatabaseStats,
	}, catalogPermissions)

	mount(s, v1.Group("/tables", s.authenticate), resource[types.Table, types.CreateTableInput, types.UpdateTableInput, types.TableFilter]{
		entity:  types.EntityTable,
		filter:  tableFilter,
		list:    svc.ListTables,
		get:     svc.GetTable,
		create:  svc.CreateTable,
		update:  svc.UpdateTable,
		remove:  svc.DeleteTable,
		restore: ignoreOptions(svc.RestoreTable),
		stats:   svc.TableStats,
	}, catalogPermissions)

	mount(s, v1.Group("/elements", s.authenticate), resource[types.Element, types.CreateElementInput, types.UpdateElementInput, types.ElementFilter]{
		entity:  types.EntityElement,
		filter:  elementFilter,
		list:    svc.ListElements,
		get:     svc.GetElement,
		create:  svc.CreateElement,
		update:  svc.UpdateElement,
		remove:  svc.DeleteElement,
		restore: svc.RestoreElement,
		stats:   svc.ElementStats,
	}, catalogPermissions)

	mount(s, v1.Group("/abbreviations", s.authenticate), resource[types.Abbreviation, types.CreateAbbreviationInput, types.UpdateAbbreviationInput, types.AbbreviationFilter]{
		entity:  types.EntityAbbreviation,
		filter:  abbreviationFilter,
		list:    svc.ListAbbreviations,
		get:     svc.GetAbbreviation,
		create:  svc.CreateAbbreviation,
		update:  svc.UpdateAbbreviation,
		remove:  svc.DeleteAbbreviation,
		restore: ignoreOptions(svc.RestoreAbbreviation),
		stats:   svc.AbbreviationStats,
	}, catalogPermissions)

	mount(s, v1.Group("/users", s.authenticate), resource[types.User, types.CreateUserInput, types.UpdateUserInput, types.UserFilter]{
		entity:  types.EntityUser,
		filter:  userFilter,
		list:    svc.ListUsers,
		get:     svc.GetUser,
		create:  svc.CreateUser,
		update:  svc.UpdateUser,
		remove:  svc.DeleteUser,
		restore: ignoreOptions(svc.RestoreUser),
		stats:   svc.UserStats,
	}, permissions{read: auth.PermAdmin, write: auth.PermAdmin, remove: auth.PermAdmin})

	v1.Get("/audit-logs", s.authenticate, requirePermission(auth.PermAdmin), s.listAuditLogs)
	v1.Get("/search", s.authenticate, requirePermission(auth.PermRead), s.search)
}
