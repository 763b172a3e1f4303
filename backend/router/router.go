package router

import (
	"net/http"

	"taskrelay/backend/app/controllers"
	"taskrelay/backend/app/middleware"
)

type Controllers struct {
	Health    *controllers.HealthController
	Auth      *controllers.AuthController
	Admin     *controllers.AdminController
	AgentComm *controllers.AgentCommController
	Agents    *controllers.AgentController
	Commands  *controllers.CommandController
	Files     *controllers.FileController
}

func NewRouter(c Controllers, mw *middleware.Auth) *http.ServeMux {
	mux := http.NewServeMux()
	handle := func(pattern string, h http.Handler) {
		mux.Handle(pattern, middleware.WithRoute(pattern, h))
	}
	open := func(pattern string, fn http.HandlerFunc) { handle(pattern, fn) }
	operator := func(pattern string, fn http.HandlerFunc) { handle(pattern, mw.RequireAuth(fn)) }
	admin := func(pattern string, fn http.HandlerFunc) { handle(pattern, mw.RequireAdmin(fn)) }

	open("GET /ping", c.Health.Ping)
	open("GET /health", c.Health.Health)

	// auth
	open("POST /auth/login", c.Auth.Login)
	operator("POST /auth/logout", c.Auth.Logout)
	open("GET /auth/verify", c.Auth.Verify)
	admin("POST /admin/users", c.Admin.CreateUser)
	admin("GET /admin/users", c.Admin.ListUsers)

	// agent side
	open("POST /join", c.AgentComm.Join)
	open("GET /agent/get_commands/{agent_id}", c.AgentComm.GetCommands)
	open("POST /agent/set_command_result", c.AgentComm.SetCommandResult)
	open("POST /agent/set_commands", c.AgentComm.SetCommands)
	open("POST /agent/upload_file", c.AgentComm.UploadFile)
	open("GET /files/{agent_dir}/{filename}", c.Files.ServeToAgent)

	// operator side
	operator("GET /agents", c.Agents.List)
	operator("GET /agent/{agent_id}", c.Agents.Get)
	operator("DELETE /agent/{agent_id}", c.Agents.Delete)
	operator("POST /command/{agent_id}/{type}", c.Commands.Create)
	operator("GET /command/{agent_id}/{command_id}", c.Commands.Result)
	operator("POST /create_command/{agent_id}", c.Commands.CreateLegacy)
	operator("GET /files/{agent_id}", c.Files.List)
	operator("GET /dashboard/files/{agent_id}/{filename}", c.Files.Download)
	operator("POST /upload_for_agent/{agent_id}", c.Files.Stage)

	return mux
}
