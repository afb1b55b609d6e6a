package domain

import "github.com/supabase-community/supabase-go"

// SupabaseClient exposes the hosted Postgres used by the supabase store.
type SupabaseClient interface {
	Initialize() error
	DB() *supabase.Client
}
