package driver

// IndexQueries prepare the schema used by the Todo queries.
var IndexQueries = []string{
	"CREATE INDEX ON :Todo(id);",
	"CREATE INDEX ON :Todo(created_at);",
	"CREATE CONSTRAINT ON (t:Todo) ASSERT t.id IS UNIQUE;",
}

// Every Todo query returns the columns id, title and is_completed.
const (
	CreateTodoQuery = `
		CREATE (t:Todo {
			id: $id,
			title: $title,
			is_completed: $is_completed,
			created_at: $created_at
		})
		RETURN t.id AS id, t.title AS title, t.is_completed AS is_completed
	`

	ListTodosQuery = `
		MATCH (t:Todo)
		RETURN t.id AS id, t.title AS title, t.is_completed AS is_completed
		ORDER BY t.created_at ASC, t.id ASC
	`

	GetTodoQuery = `
		MATCH (t:Todo {id: $id})
		RETURN t.id AS id, t.title AS title, t.is_completed AS is_completed
	`

	UpdateTodoQuery = `
		MATCH (t:Todo {id: $id})
		SET t.title = coalesce($title, t.title),
			t.is_completed = coalesce($is_completed, t.is_completed)
		RETURN t.id AS id, t.title AS title, t.is_completed AS is_completed
	`

	DeleteTodoQuery = `
		MATCH (t:Todo {id: $id})
		WITH t, t.id AS id
		DETACH DELETE t
		RETURN count(id) AS deleted
	`
)
