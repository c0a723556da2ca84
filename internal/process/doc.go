// Package process runs external helper binaries (NetworkManager's nmcli,
// for instance) as one-shot commands.
//
// Features:
//   - Process group per command so cancellation reaches children
//   - Graceful stop: SIGTERM, then SIGKILL after a timeout
//   - Bounded capture of stdout and stderr
//   - Typed errors for missing binaries, non-zero exits and cancellation
//
// Example usage:
//
//	nmcli := process.NewRunner(process.Config{
//	    Name:   "nmcli",
//	    Binary: "/usr/bin/nmcli",
//	})
//
//	res, err := nmcli.Run(ctx, "-t", "-f", "SSID,SIGNAL", "device", "wifi", "list")
//	if err != nil {
//	    return err
//	}
//	fmt.Printf("%s", res.Stdout)
package process
