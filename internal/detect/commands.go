package detect

// BuildSpec is the per-ecosystem toolchain configuration: which image to run
// in, how to prepare it, and the build/test commands.
type BuildSpec struct {
	Image    string
	Setup    string
	BuildCmd string
	TestCmd  string
}

// Specs maps each supported project type to its toolchain configuration.
var Specs = map[ProjectType]BuildSpec{
	JavaGradle: {
		Image:    "eclipse-temurin:17-jdk-jammy",
		Setup:    "apt-get update && apt-get install -y git curl",
		BuildCmd: "./gradlew clean build -x test --no-daemon --stacktrace",
		TestCmd:  "./gradlew test --no-daemon",
	},
	JavaMaven: {
		Image:    "maven:3.9-eclipse-temurin-17",
		Setup:    "apt-get update && apt-get install -y git",
		BuildCmd: "mvn clean compile -DskipTests -q",
		TestCmd:  "mvn test",
	},
	NodeNPM: {
		Image:    "node:20-alpine",
		Setup:    "apk add --no-cache git bash",
		BuildCmd: "npm ci && npm run build",
		TestCmd:  "npm test",
	},
	NodeYarn: {
		Image:    "node:20-alpine",
		Setup:    "apk add --no-cache git bash",
		BuildCmd: "yarn install --frozen-lockfile && yarn build",
		TestCmd:  "yarn test",
	},
	PythonPip: {
		Image:    "python:3.11-slim",
		Setup:    "apt-get update && apt-get install -y git",
		BuildCmd: "pip install -r requirements.txt && python -m compileall .",
		TestCmd:  "pytest",
	},
	PythonPoetry: {
		Image:    "python:3.11-slim",
		Setup:    "apt-get update && apt-get install -y git",
		BuildCmd: "pip install poetry && poetry install && poetry build",
		TestCmd:  "poetry run pytest",
	},
	RustCargo: {
		Image:    "rust:latest",
		Setup:    "apt-get update && apt-get install -y git",
		BuildCmd: "cargo build --release",
		TestCmd:  "cargo test",
	},
	GoMod: {
		Image:    "golang:1.24-alpine",
		Setup:    "apk add --no-cache git bash",
		BuildCmd: "go mod download && go build ./...",
		TestCmd:  "go test ./...",
	},
}
