package tracking

// CurrentVersion is the schema version this build reads and writes.
// Tables stamped with a newer version load read-only.
const CurrentVersion = 1

// ImageType records how a background artifact was produced.
type ImageType string

const (
	ImageFork       ImageType = "fork"
	ImageContinue   ImageType = "continue"
	ImageCustomText ImageType = "custom-text"
	ImageCustomFile ImageType = "custom-file"
)

// Valid reports whether t is a known image type.
func (t ImageType) Valid() bool {
	switch t {
	case ImageFork, ImageContinue, ImageCustomText, ImageCustomFile:
		return true
	}
	return false
}

// Mapping links a session to its profile and records its fork parent.
type Mapping struct {
	SessionID   string `json:"sessionId"`
	ProfileName string `json:"profileName"`
	ProjectPath string `json:"projectPath"`
	Model       string `json:"model"`
	ForkedFrom  string `json:"forkedFrom,omitempty"`
	Created     string `json:"created"`
}

// MappingTable is the session-mapping.json document.
type MappingTable struct {
	Version  int       `json:"version"`
	Sessions []Mapping `json:"sessions"`
}

// ProfileEntry is a legacy profile-registry record. OriginalSessionID is the
// session the profile launches.
type ProfileEntry struct {
	SessionName       string `json:"sessionName"`
	ProfileHandle     string `json:"profileHandle"`
	OriginalSessionID string `json:"originalSessionId"`
	Created           string `json:"created"`
	ProjectPath       string `json:"projectPath"`
	BackgroundImage   string `json:"backgroundImage"`
	Model             string `json:"model"`
}

// RegistryTable is the profile-registry.json document.
type RegistryTable struct {
	Version  int            `json:"version"`
	Profiles []ProfileEntry `json:"profiles"`
}

// BackgroundEntry records the artifact generated for a session.
type BackgroundEntry struct {
	SessionName    string    `json:"sessionName"`
	BackgroundPath string    `json:"backgroundPath"`
	TextContent    string    `json:"textContent"`
	ImageType      ImageType `json:"imageType"`
	Created        string    `json:"created"`
}

// BackgroundTable is the background-tracking.json document.
type BackgroundTable struct {
	Version     int               `json:"version"`
	Backgrounds []BackgroundEntry `json:"backgrounds"`
}

func (t *MappingTable) getVersion() int     { return t.Version }
func (t *MappingTable) setVersion(v int)    { t.Version = v }
func (t *RegistryTable) getVersion() int    { return t.Version }
func (t *RegistryTable) setVersion(v int)   { t.Version = v }
func (t *BackgroundTable) getVersion() int  { return t.Version }
func (t *BackgroundTable) setVersion(v int) { t.Version = v }

func (t *MappingTable) normalize() {
	if t.Sessions == nil {
		t.Sessions = []Mapping{}
	}
}

func (t *RegistryTable) normalize() {
	if t.Profiles == nil {
		t.Profiles = []ProfileEntry{}
	}
}

func (t *BackgroundTable) normalize() {
	if t.Backgrounds == nil {
		t.Backgrounds = []BackgroundEntry{}
	}
}

// ProfileRecord is the joined view of one claimed terminal profile.
type ProfileRecord struct {
	SessionID              string
	SessionName            string
	ProfileName            string
	ProfileHandle          string
	BackgroundArtifactPath string
	Model                  string
	ProjectPath            string
	CreatedAt              string
}

// ArtifactRecord describes a background file and the live profiles using it.
// An empty ReferencingProfiles means the artifact is orphaned.
type ArtifactRecord struct {
	ArtifactPath        string
	SourceKind          ImageType
	TextContent         string
	ReferencingProfiles []string
}

// Orphaned reports whether no live profile references the artifact.
func (a ArtifactRecord) Orphaned() bool {
	return len(a.ReferencingProfiles) == 0
}
