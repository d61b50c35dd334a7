// Package banner prints the startup banner.
package banner

import "fmt"

// Version is the release version reported at startup.
const Version = "1.0.0"

// Print writes the banner to stdout.
func Print() {
	banner := `
 _    ___       _ __
| |  / (_)___ _(_) /
| | / / / __ '/ / /
| |/ / / /_/ / / /
|___/_/\__, /_/_/
      /____/  v%s - Real-time Alerting Engine
    `
	fmt.Printf(banner, Version)
	fmt.Println("\n------------------------------------------------")
}
