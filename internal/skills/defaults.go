package skills

import (
	"os"
	"path/filepath"
)

// defaultSkills are written into a fresh skills directory so the agent has
// a usable playbook library out of the box. Existing files are never
// overwritten.
var defaultSkills = map[string]string{
	"port-scan-triage.md": `---
name: port-scan-triage
description: Triage open ports from a scan and pick follow-up actions per service
---

# Port scan triage

1. Start broad but quiet: ` + "`nmap -sS -T3 --top-ports 1000 <target>`" + `.
2. For each open port, run service/version detection on just those ports:
   ` + "`nmap -sV -sC -p <ports> <target>`" + `.
3. Prioritize by exposure: admin interfaces (22, 3389, 5900), web stacks
   (80, 443, 8080, 8443), databases (3306, 5432, 6379, 27017), file
   services (21, 445, 2049).
4. Web ports: fetch the root page, note server headers, then enumerate
   paths with a small wordlist before reaching for large ones.
5. Record every version string. Search for known CVEs against exact
   versions, not product names alone.
6. Databases and caches: test for unauthenticated access before anything
   else. Redis, Mongo and Elasticsearch are frequently open.
`,
	"recon-checklist.md": `---
name: recon-checklist
description: Passive and active reconnaissance checklist for a new engagement target
---

# Recon checklist

- Confirm scope first: IP ranges, hostnames, and what is explicitly excluded.
- Passive: WHOIS, DNS records (A, AAAA, MX, TXT, NS), certificate
  transparency logs for subdomains, public code repos for leaked config.
- Subdomain enumeration before port scanning: each name may front a
  different service.
- Note the technology stack from headers, favicons and error pages.
- Keep raw tool output in files; summarize findings separately so results
  can be re-checked later.
- Re-run discovery late in the engagement: environments change.
`,
	"post-exploitation.md": `---
name: post-exploitation
description: Checklist after obtaining initial access to a host
---

# Post-exploitation checklist

1. Identify who and where you are: ` + "`id`, `hostname`, `uname -a`" + `.
2. Look for credentials: shell history, config files, environment
   variables, ` + "`.ssh`" + ` directories, database connection strings.
3. Enumerate privilege escalation vectors: sudo rights (` + "`sudo -l`" + `),
   SUID binaries, writable cron jobs, kernel version.
4. Map the network from the inside: ARP cache, routing table, listening
   services bound to localhost.
5. Stay within scope. Document every action with a timestamp so the
   engagement report can reconstruct the timeline.
`,
	"ctf-flag-hunting.md": `---
name: ctf-flag-hunting
description: Systematic approach to locating flags in CTF challenges
---

# CTF flag hunting

- Establish the flag format early (flag{...}, CTF{...}, custom prefix) and
  grep for it everywhere: ` + "`grep -r 'flag{' .`" + `.
- Check the obvious spots first: web page source, HTTP headers, robots.txt,
  cookies, hidden form fields.
- Files: run ` + "`file`" + `, ` + "`strings`" + ` and ` + "`xxd`" + ` on anything downloadable;
  check for appended data after EOF markers.
- Encodings stack: base64 inside hex inside rot13 is common. Decode
  iteratively and re-inspect after each pass.
- When stuck, enumerate harder rather than exploit harder: most CTF
  dead-ends are missed content, not missed exploits.
`,
}

// WriteDefaults populates dir with the built-in skill files, creating the
// directory if needed. Files that already exist are left alone.
func WriteDefaults(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	for name, content := range defaultSkills {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			continue
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			return err
		}
	}
	return nil
}
