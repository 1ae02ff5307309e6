package model

// Backend names accepted by GATEWAY_BACKEND.
const (
	BackendSupabase = "supabase"
	BackendPostgres = "postgres"
)

// Relations referenced by the admin.
const (
	RelationUser         = "user"
	RelationAgent        = "agent"
	RelationAgentUser    = "agent_user"
	RelationAgentStep    = "agent_step"
	RelationSubscription = "subscription"
	RelationViewUser     = "view_user"
)
