package detect

// ProjectType identifies the build-tool family of a repository.
type ProjectType string

const (
	JavaGradle   ProjectType = "java-gradle"
	JavaMaven    ProjectType = "java-maven"
	NodeNPM      ProjectType = "nodejs-npm"
	NodeYarn     ProjectType = "nodejs-yarn"
	PythonPip    ProjectType = "python-pip"
	PythonPoetry ProjectType = "python-poetry"
	RustCargo    ProjectType = "rust-cargo"
	GoMod        ProjectType = "go-mod"
	DotNet       ProjectType = "dotnet"
	RubyBundler  ProjectType = "ruby-bundler"
	Unknown      ProjectType = "unknown"
)

// detectionRules maps file indicators in a repo root to a project type.
// Order matters: wrapper-based ecosystems are checked before generic ones.
var detectionRules = []struct {
	Type       ProjectType
	Indicators []string
}{
	{JavaGradle, []string{"build.gradle", "build.gradle.kts", "gradlew", "settings.gradle", "settings.gradle.kts"}},
	{JavaMaven, []string{"pom.xml"}},
	{NodeNPM, []string{"package-lock.json"}},
	{NodeYarn, []string{"yarn.lock"}},
	{PythonPip, []string{"requirements.txt", "setup.py"}},
	{PythonPoetry, []string{"poetry.lock"}},
	{RustCargo, []string{"Cargo.toml"}},
	{GoMod, []string{"go.mod"}},
	{DotNet, []string{"*.csproj", "*.sln"}},
	{RubyBundler, []string{"Gemfile.lock"}},
}

// languageMap maps a repository's primary language to a default project type.
var languageMap = map[string]ProjectType{
	"Java":       JavaGradle,
	"JavaScript": NodeNPM,
	"TypeScript": NodeNPM,
	"Python":     PythonPip,
	"Rust":       RustCargo,
	"Go":         GoMod,
	"C#":         DotNet,
	"Ruby":       RubyBundler,
}

// Parse converts a user-supplied string into a ProjectType.
func Parse(s string) (ProjectType, bool) {
	switch ProjectType(s) {
	case JavaGradle, JavaMaven, NodeNPM, NodeYarn, PythonPip, PythonPoetry,
		RustCargo, GoMod, DotNet, RubyBundler, Unknown:
		return ProjectType(s), true
	}
	return Unknown, false
}
