package mcp

import "github.com/mark3labs/mcp-go/mcp"

var createToolDef = mcp.NewTool("capsule_create",
	mcp.WithDescription("Create an immutable time capsule authored by the server's signing identity. "+
		"Field limits in UTF-8 bytes: title 64, recipient 64, message 256, media_reference 256, location 64."),
	mcp.WithString("title", mcp.Description("Short title")),
	mcp.WithString("recipient", mcp.Description("Who the capsule is for")),
	mcp.WithString("message", mcp.Description("Capsule body")),
	mcp.WithString("media_reference", mcp.Description("Link to attached media, e.g. ipfs://...")),
	mcp.WithString("capsule_type",
		mcp.Description("Disclosure mode (default general)"),
		mcp.Enum("general", "time_locked"),
	),
	mcp.WithNumber("unlock_at", mcp.Description("Unix time a time_locked capsule opens. Omit and it never opens.")),
	mcp.WithString("location", mcp.Description("Optional location tag required to view a time_locked capsule")),
)

var viewToolDef = mcp.NewTool("capsule_view",
	mcp.WithDescription("Open a capsule. Fails with CAPSULE_LOCKED before its unlock time and "+
		"LOCATION_MISMATCH when the presented location differs from the stored one."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Capsule ULID")),
	mcp.WithString("location", mcp.Description("Presented location")),
)

var statusToolDef = mcp.NewTool("capsule_status",
	mcp.WithDescription("Report a capsule's header, whether it is unlockable now, and its collectible, without disclosing contents."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Capsule ULID")),
)

var listToolDef = mcp.NewTool("capsule_list",
	mcp.WithDescription("List capsule headers, newest first. Never includes message, media or location."),
	mcp.WithString("author", mcp.Description("Filter by author (base58)")),
	mcp.WithString("capsule_type", mcp.Description("Filter by type"), mcp.Enum("general", "time_locked")),
	mcp.WithNumber("limit", mcp.Description("Max items (default 20, max 100)")),
	mcp.WithNumber("offset", mcp.Description("Items to skip")),
)

var mintToolDef = mcp.NewTool("capsule_mint",
	mcp.WithDescription("Mint a capsule as a one-of-a-kind collectible: one unit to the author plus a metadata entry. "+
		"Only the author may mint, at most once per capsule."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Capsule ULID")),
	mcp.WithString("mint", mcp.Description("Existing mint address (base58) whose authority is the author. Omit to create a new one.")),
	mcp.WithString("name", mcp.Description("Collectible name, max 32 bytes (default: capsule title)")),
	mcp.WithString("symbol", mcp.Description("Collectible symbol, max 10 bytes (default: config mint_symbol)")),
	mcp.WithString("uri", mcp.Description("Metadata URI, max 200 bytes (default: capsule media reference)")),
)
