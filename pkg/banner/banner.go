package banner

import (
	"fmt"

	"github.com/QuilibriumNetwork/quorum-shared/pkg/config"
)

const banner = `
 ██████╗ ██╗   ██╗ ██████╗ ██████╗ ██╗   ██╗███╗   ███╗      ███████╗██╗   ██╗███╗   ██╗ ██████╗
██╔═══██╗██║   ██║██╔═══██╗██╔══██╗██║   ██║████╗ ████║      ██╔════╝╚██╗ ██╔╝████╗  ██║██╔════╝
██║   ██║██║   ██║██║   ██║██████╔╝██║   ██║██╔████╔██║█████╗███████╗ ╚████╔╝ ██╔██╗ ██║██║
██║▄▄ ██║██║   ██║██║   ██║██╔══██╗██║   ██║██║╚██╔╝██║╚════╝╚════██║  ╚██╔╝  ██║╚██╗██║██║
╚██████╔╝╚██████╔╝╚██████╔╝██║  ██║╚██████╔╝██║ ╚═╝ ██║      ███████║   ██║   ██║ ╚████║╚██████╗
 ╚══▀▀═╝  ╚═════╝  ╚═════╝ ╚═╝  ╚═╝ ╚═════╝ ╚═╝     ╚═╝      ╚══════╝   ╚═╝   ╚═╝  ╚═══╝ ╚═════╝
`

// Print writes the startup banner with the effective runtime info.
func Print(eff config.EffectiveConfigResult, version string) {
	fmt.Print(banner)
	fmt.Println("== Config =====================================================")
	fmt.Printf("Debug listen: %s\n", eff.Addr)
	fmt.Printf("DB Path:      %s\n", eff.DBPath)
	if version != "" {
		fmt.Printf("Version:      %s\n", version)
	}
	fmt.Printf("Config:       %s\n", eff.Source)

	fmt.Println("\n== Endpoints ==================================================")
	fmt.Println("GET /healthz                                        - liveness")
	fmt.Println("GET /metrics                                        - prometheus metrics")
	fmt.Println("GET /v1/spaces/{space}/channels/{channel}/summary   - channel summary")
	fmt.Println("GET /v1/sessions                                    - live sync sessions")

	if eff.Config.Cleanup.Enabled {
		cron := eff.Config.Cleanup.Cron
		if cron == "" {
			cron = "0 2 * * *"
		}
		fmt.Printf("\nTombstone cleanup: enabled (cron=%s)\n", cron)
	} else {
		fmt.Println("\nTombstone cleanup: disabled")
	}
	fmt.Println("\n== Logs =======================================================")
}
