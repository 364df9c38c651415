package logging

import "fmt"

// GenerateLogrotateConfig creates a logrotate configuration for a component
func GenerateLogrotateConfig(component string) string {
	return fmt.Sprintf(`# Logrotate configuration for landing %s
# Install: sudo cp this file to /etc/logrotate.d/landing-%s

%s/%s.log {
    daily
    rotate 14
    compress
    delaycompress
    missingok
    notifempty
    create 0644 landing landing
    postrotate
        systemctl reload landing-%s 2>/dev/null || true
    endscript
}
`, component, component, baseLogDir, component, component)
}
