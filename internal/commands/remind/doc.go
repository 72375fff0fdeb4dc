// Package remind wires the reminder service to chat commands.
//
//	/remind set 9:00 AM [12-12-2025] water the plants
//	/remind set --time 9:00 AM --message water the plants
//	/remind list
//	/remind delete [query]
//	/remind modify [query] --message ... --time ... --date ...
//
// delete and modify answer with up to five inline buttons ranked by the
// query. Each button carries a short token that points at the pending
// action; the token is bound to the user who ran the command.
package remind
