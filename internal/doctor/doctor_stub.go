//go:build !portaudio

package doctor

func checkPortAudio() Result {
	return Result{Name: "portaudio init", Pass: false, Detail: "binary built without microphone support (build with -tags portaudio)"}
}
