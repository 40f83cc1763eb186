package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"tableflip.dev/todosync/pkg/todo"
)

func registerTools(srv *server.MCPServer, svc *Service) {
	registerListTodosTool(srv, svc)
	registerAddTodoTool(srv, svc)
	registerRenameTodoTool(srv, svc)
	registerToggleTodoTool(srv, svc)
	registerDeleteTodosTool(srv, svc)
	registerClearCompletedTool(srv, svc)
	registerToggleAllTool(srv, svc)
}

func registerListTodosTool(srv *server.MCPServer, svc *Service) {
	tool := mcp.NewTool(
		"list_todos",
		mcp.WithDescription("List the todos of the configured user."),
		mcp.WithString("filter",
			mcp.Description("Which todos to return."),
			mcp.Enum(string(todo.FilterAll), string(todo.FilterActive), string(todo.FilterCompleted)),
		),
	)

	srv.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args struct {
			Filter string `json:"filter"`
		}
		if err := request.BindArguments(&args); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
		}
		f, err := todo.ParseFilter(args.Filter)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return toResult(svc.ListTodos(ctx, f))
	})
}

func registerAddTodoTool(srv *server.MCPServer, svc *Service) {
	tool := mcp.NewTool(
		"add_todo",
		mcp.WithDescription("Create a new open todo."),
		mcp.WithString("title",
			mcp.Required(),
			mcp.Description("Title of the new todo. Surrounding whitespace is trimmed."),
		),
	)

	srv.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		title, err := request.RequireString("title")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return toResult(svc.AddTodo(ctx, title))
	})
}

func registerRenameTodoTool(srv *server.MCPServer, svc *Service) {
	tool := mcp.NewTool(
		"rename_todo",
		mcp.WithDescription("Change the title of a todo. A blank title deletes it."),
		mcp.WithNumber("id",
			mcp.Required(),
			mcp.Description("Todo identifier."),
		),
		mcp.WithString("title",
			mcp.Required(),
			mcp.Description("New title."),
		),
	)

	srv.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args struct {
			ID    int    `json:"id"`
			Title string `json:"title"`
		}
		if err := request.BindArguments(&args); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
		}
		return toResult(svc.RenameTodo(ctx, args.ID, args.Title))
	})
}

func registerToggleTodoTool(srv *server.MCPServer, svc *Service) {
	tool := mcp.NewTool(
		"toggle_todo",
		mcp.WithDescription("Flip the completed flag of a todo."),
		mcp.WithNumber("id",
			mcp.Required(),
			mcp.Description("Todo identifier."),
		),
	)

	srv.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args struct {
			ID int `json:"id"`
		}
		if err := request.BindArguments(&args); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
		}
		return toResult(svc.ToggleTodo(ctx, args.ID))
	})
}

func registerDeleteTodosTool(srv *server.MCPServer, svc *Service) {
	tool := mcp.NewTool(
		"delete_todos",
		mcp.WithDescription("Delete todos one after another, stopping at the first failure."),
		mcp.WithArray("ids",
			mcp.Required(),
			mcp.Description("Todo identifiers, deleted in this order."),
			mcp.Items(map[string]any{"type": "integer"}),
		),
	)

	srv.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args struct {
			IDs []int `json:"ids"`
		}
		if err := request.BindArguments(&args); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
		}
		return toResult(svc.DeleteTodos(ctx, args.IDs))
	})
}

func registerClearCompletedTool(srv *server.MCPServer, svc *Service) {
	tool := mcp.NewTool(
		"clear_completed",
		mcp.WithDescription("Delete every completed todo. Failed deletes stay in the list."),
	)

	srv.AddTool(tool, func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return toResult(svc.ClearCompleted(ctx))
	})
}

func registerToggleAllTool(srv *server.MCPServer, svc *Service) {
	tool := mcp.NewTool(
		"toggle_all",
		mcp.WithDescription("Complete every open todo, or reopen all of them when every todo is done."),
	)

	srv.AddTool(tool, func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return toResult(svc.ToggleAll(ctx))
	})
}

// toResult reports a failed action as a tool error that still carries the
// list, so the client sees which ids survived.
func toResult(res ListResult, err error) (*mcp.CallToolResult, error) {
	data, merr := json.Marshal(res)
	if merr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("marshal error: %v", merr)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("%v\n%s", err, data)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
