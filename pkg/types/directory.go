package types

// DirectorySummary is the payload of one directory agent tick.
type DirectorySummary struct {
	RootPath string      `json:"root_path"`
	Results  []Directory `json:"results"`
}

// Directory describes one application directory found under the scan root.
// The app_* fields come from an optional app_info.yml inside the directory.
type Directory struct {
	Path       string `json:"path" yaml:"path"`
	Created    int64  `json:"created" yaml:"created"`
	Modified   int64  `json:"modified" yaml:"modified"`
	AppName    string `json:"app_name" yaml:"app_name"`
	AppVersion string `json:"app_version" yaml:"app_version"`
	AppDesc    string `json:"app_desc" yaml:"app_desc"`
	LinkMan    string `json:"link_man" yaml:"link_man"`
}
