// Package security builds the posture report exposed by Client.SecurityReport.
package security
