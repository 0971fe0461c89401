package entity

// Result is the externally consumable outcome of a completed job. It is
// created once by the export stage and never mutated afterwards.
type Result struct {
	ModelPath      string `json:"model_path"`
	ThumbnailPath  string `json:"thumbnail_path,omitempty"`
	MetadataPath   string `json:"metadata_path,omitempty"`
	PointCloudPath string `json:"point_cloud_path,omitempty"`

	NumPoints   int     `json:"num_points,omitempty"`
	NumFaces    int     `json:"num_faces,omitempty"`
	ModelSizeMB float64 `json:"model_size_mb,omitempty"`

	// Quality metrics; zero pointers mean "not measured".
	PSNR *float64 `json:"psnr,omitempty"`
	SSIM *float64 `json:"ssim,omitempty"`

	ExportFormats []string `json:"export_formats,omitempty"`
}

// Artifact kinds resolvable by logical name, so callers never need
// pipeline-internal directory knowledge.
const (
	ArtifactModel      = "model"
	ArtifactThumbnail  = "thumbnail"
	ArtifactMetadata   = "metadata"
	ArtifactPointCloud = "point_cloud"
)

// ArtifactPath resolves a logical artifact name to its path, or "" if the
// result does not carry that artifact.
func (r *Result) ArtifactPath(kind string) string {
	switch kind {
	case ArtifactModel:
		return r.ModelPath
	case ArtifactThumbnail:
		return r.ThumbnailPath
	case ArtifactMetadata:
		return r.MetadataPath
	case ArtifactPointCloud:
		return r.PointCloudPath
	default:
		return ""
	}
}
