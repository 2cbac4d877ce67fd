package agent

import "github.com/redclaw-sec/redclaw/internal/tools"

// BuiltinDefinitions returns the default agent catalog.
func BuiltinDefinitions() []Definition {
	return []Definition{
		{
			Name:        "echo",
			DisplayName: "Echo",
			Description: "Minimal test agent that answers directly without tools",
			System:      "You are a helpful assistant. Answer the user directly and concisely.",
		},
		{
			Name:        "one_tool_agent",
			DisplayName: "One Tool Agent",
			Description: "General purpose agent with shell command execution",
			System: "You are a security assessment assistant. You can execute Linux " +
				"commands to inspect systems. Prefer a single precise command per step.",
			Tools:    []string{tools.GenericLinuxCommand},
			MaxTurns: 10,
		},
		{
			Name:        "red_teamer",
			DisplayName: "Red Team Agent",
			Description: "Offensive security agent for authorized assessments",
			System: "You are an authorized red team operator. Enumerate, exploit, and " +
				"report within the agreed scope. Execute commands deliberately and " +
				"explain each step before acting.",
			Tools:    []string{tools.GenericLinuxCommand},
			MaxTurns: 20,
		},
		{
			Name:        "bug_bounter",
			DisplayName: "Bug Bounty Agent",
			Description: "Web-focused vulnerability discovery agent",
			System: "You are a bug bounty hunter working inside an authorized program " +
				"scope. Focus on web reconnaissance and vulnerability verification.",
			Tools:    []string{tools.GenericLinuxCommand},
			MaxTurns: 20,
		},
		{
			Name:        "dns_smtp_agent",
			DisplayName: "DNS/SMTP Agent",
			Description: "Mail and DNS infrastructure reconnaissance agent",
			System: "You analyze DNS records and mail server configuration. Use dig, " +
				"host, and related tools to verify SPF, DKIM, and DMARC posture.",
			Tools:    []string{tools.GenericLinuxCommand},
			MaxTurns: 15,
		},
	}
}
