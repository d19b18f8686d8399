package build

// StageName is a strongly-typed identifier for a build stage.
type StageName string

// Canonical stage names, in execution order.
const (
	StageParseExport       StageName = "parse_export"
	StageCanonicalize      StageName = "canonicalize"
	StageAllocateFilenames StageName = "allocate_filenames"
	StageResolveMedia      StageName = "resolve_media"
	StageRenderSite        StageName = "render_site"
	StageSitemap           StageName = "sitemap"
	StageAudit             StageName = "audit"
	StagePromote           StageName = "promote"
)
