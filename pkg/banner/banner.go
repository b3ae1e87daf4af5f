package banner

import "fmt"

const banner = `
███╗   ███╗ █████╗ ██████╗ ██╗  ██╗███████╗████████╗███████╗██╗   ██╗███╗   ██╗ ██████╗
████╗ ████║██╔══██╗██╔══██╗██║ ██╔╝██╔════╝╚══██╔══╝██╔════╝╚██╗ ██╔╝████╗  ██║██╔════╝
██╔████╔██║███████║██████╔╝█████╔╝ █████╗     ██║   ███████╗ ╚████╔╝ ██╔██╗ ██║██║
██║╚██╔╝██║██╔══██║██╔══██╗██╔═██╗ ██╔══╝     ██║   ╚════██║  ╚██╔╝  ██║╚██╗██║██║
██║ ╚═╝ ██║██║  ██║██║  ██║██║  ██╗███████╗   ██║   ███████║   ██║   ██║ ╚████║╚██████╗
╚═╝     ╚═╝╚═╝  ╚═╝╚═╝  ╚═╝╚═╝  ╚═╝╚══════╝   ╚═╝   ╚══════╝   ╚═╝   ╚═╝  ╚═══╝ ╚═════╝
`

// Print writes the startup banner plus the effective runtime info.
func Print(addr, dbPath, sources, version string) {
	fmt.Print(banner)
	fmt.Println("== Config =====================================================")
	fmt.Printf("Listen:   %s\n", addr)
	fmt.Printf("DB Path:  %s\n", dbPath)
	if version != "" {
		fmt.Printf("Version:  %s\n", version)
	}
	if sources != "" {
		fmt.Printf("Config sources: %s\n", sources)
	}
	fmt.Println("\n== Endpoints ==================================================")
	fmt.Println("POST /v1/messages - Send a message (JSON: receiver_id, body)")
	fmt.Println("GET  /v1/messages?a=<id>&b=<id>&limit=<n> - List a conversation")
	fmt.Println("PUT  /v1/messages/mark-read - Advance a read marker")
	fmt.Println("GET  /v1/messages/unread-count?observer=<id> - Unread total")
	fmt.Println("GET  /v1/notifications/{collection}/diff?observer=<id> - Watermark delta")
	fmt.Println("\n== Examples ===================================================")
	fmt.Printf("curl -X POST 'http://localhost%s/v1/messages' -d '{\"receiver_id\":\"shop-1\",\"body\":\"hello\"}'\n", addr)
	fmt.Printf("curl 'http://localhost%s/v1/messages?a=adm-1&b=shop-1&limit=10'\n", addr)
	fmt.Println("\n== Production? =================================================")
	fmt.Println("Set a proper storage path (--db)")
	fmt.Println("Configure backend/frontend API keys and signed identities")
}
