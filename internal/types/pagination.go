package types

// PageInfo describes where a keyset-paginated listing stops. NextCursor is
// opaque to clients and is sent back unchanged to fetch the following page.
type PageInfo struct {
	HasMore    bool   `json:"has_more"`
	NextCursor string `json:"next_cursor,omitempty"`
}

// ResponseMeta rides alongside the data of a successful response. Warnings
// carry non-fatal notices such as an exceeded monthly quote allowance.
type ResponseMeta struct {
	Warnings   []string  `json:"warnings,omitempty"`
	Pagination *PageInfo `json:"pagination,omitempty"`
}
