// Command effectwatch mirrors the effects scheduled on a STOMP server and
// shows the running ones as progress bars.
package main

func main() {
	Execute()
}
